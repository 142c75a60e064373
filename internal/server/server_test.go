package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rezonia/nfse-emitter/internal/emission"
	"github.com/rezonia/nfse-emitter/internal/ipm"
	"github.com/rezonia/nfse-emitter/internal/logger"
	"github.com/rezonia/nfse-emitter/internal/metrics"
	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/server"
)

type fakeEmitter struct {
	result   *emission.Result
	err      error
	invoice  *model.Invoice
	doc      string
	requests []model.InvoiceRequest
	testMode []bool
	failed   []model.Invoice
	limits   []int
}

func (f *fakeEmitter) Emit(ctx context.Context, req model.InvoiceRequest) (*emission.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeEmitter) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	if f.invoice == nil || f.invoice.ID != id {
		return nil, model.NewNotFoundError("invoice", id.String())
	}
	return f.invoice, nil
}

func (f *fakeEmitter) Preview(ctx context.Context, id uuid.UUID, testMode bool) (string, error) {
	f.testMode = append(f.testMode, testMode)
	if f.err != nil {
		return "", f.err
	}
	if f.invoice == nil || f.invoice.ID != id {
		return "", model.NewNotFoundError("invoice", id.String())
	}
	return f.doc, nil
}

func (f *fakeEmitter) ListFailed(ctx context.Context, limit int) ([]model.Invoice, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.failed, nil
}

func newTestServer(t *testing.T, emitter *fakeEmitter, reg *prometheus.Registry) *server.Server {
	t.Helper()
	config := &server.Config{
		Address: ":8080",
		Debug:   true,
	}
	deps := server.Dependencies{
		Emitter: emitter,
		Logger:  zaptest.NewLogger(t),
	}
	if reg != nil {
		deps.Gatherer = reg
	}
	srv, err := server.NewServer(config, deps)
	require.NoError(t, err)
	return srv
}

func strPtr(s string) *string { return &s }

func validRequest() model.InvoiceRequest {
	return model.InvoiceRequest{
		ClientID: "client-1",
		Issuer: model.Issuer{
			Cnpj:                 "11.222.333/0001-81",
			MunicipalInscription: "123456",
			Name:                 "Lava Car Concórdia Ltda",
			Cnae:                 "4520-0/05",
			Address: model.Address{
				Street: "Rua Principal", Number: "100", Neighborhood: "Centro",
				City: "Concórdia", Uf: "SC", ZipCode: "89700-000",
			},
		},
		Consumer: model.Consumer{
			Name:    "Maria Souza",
			CpfCnpj: "529.982.247-25",
			Email:   strPtr("maria@example.com"),
			Address: model.Address{
				Street: "Av Secundária", Number: "456", Neighborhood: "Centro",
				City: "Florianópolis", Uf: "SC", ZipCode: "88010-000",
			},
		},
		ServiceDescription: "Serviço de lavagem completa do veículo",
		Amount:             decimal.RequireFromString("1500.00"),
		IssRate:            decimal.RequireFromString("0.05"),
		IssuedAt:           time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
	}
}

func do(t *testing.T, srv *server.Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func marshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func emittedInvoice() *model.Invoice {
	number := "2026/15"
	return &model.Invoice{
		ID:                uuid.New(),
		ClientID:          "client-1",
		IssuerCNPJ:        "11222333000181",
		Amount:            decimal.RequireFromString("1500.00"),
		Status:            model.InvoiceStatusEmitted,
		ExternalInvoiceID: &number,
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEmitter{}, nil)

	w := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncrementOutcome(emission.OutcomeEmitted, ipm.ModeFile)

	srv := newTestServer(t, &fakeEmitter{}, reg)

	w := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `nfse_emissions_total{mode="file",status="emitted"} 1`)
}

func TestEmitEndpoint_Created(t *testing.T) {
	inv := emittedInvoice()
	emitter := &fakeEmitter{result: &emission.Result{
		Invoice:    inv,
		Submission: &ipm.SubmitResult{Success: true, Protocol: "2026/15", Messages: []string{"NFS-e emitida"}},
	}}
	srv := newTestServer(t, emitter, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices", marshal(t, validRequest()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var response server.EmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.NotNil(t, response.Invoice)
	assert.Equal(t, inv.ID, response.Invoice.ID)
	assert.Equal(t, model.InvoiceStatusEmitted, response.Invoice.Status)
	assert.Equal(t, "2026/15", response.Protocol)

	require.Len(t, emitter.requests, 1)
	assert.True(t, emitter.requests[0].Amount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "4520-0/05", emitter.requests[0].Issuer.Cnae)
}

func TestEmitEndpoint_Rejected(t *testing.T) {
	inv := emittedInvoice()
	inv.Status = model.InvoiceStatusFailed
	emitter := &fakeEmitter{result: &emission.Result{
		Invoice:    inv,
		Submission: &ipm.SubmitResult{Success: false, Messages: []string{"[205] CNPJ do prestador inválido"}},
	}}
	srv := newTestServer(t, emitter, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices", marshal(t, validRequest()))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.EmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []string{"[205] CNPJ do prestador inválido"}, response.Messages)
}

func TestEmitEndpoint_ValidationFailure(t *testing.T) {
	emitter := &fakeEmitter{}
	srv := newTestServer(t, emitter, nil)

	req := validRequest()
	req.Issuer.Cnpj = "11.222.333/0001-82"
	req.Consumer.Address.ZipCode = "8801"

	w := do(t, srv, http.MethodPost, "/api/v1/invoices", marshal(t, req))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation failed", response.Error)

	fields := make([]string, 0, len(response.Fields))
	for _, f := range response.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"issuer.cnpj", "consumer.address.zipCode"}, fields)
	assert.Empty(t, emitter.requests)
}

func TestEmitEndpoint_MalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeEmitter{}, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/invoices", []byte(`{"clientId":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response server.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "invalid request body", response.Error)
}

func TestEmitEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid data", model.NewInvalidInvoiceDataError("x", "issuer_data", "cannot decode issuer", nil), http.StatusUnprocessableEntity},
		{"gateway", ipm.NewGatewayError(ipm.ErrCodeTransport, ipm.ModeAPI, "request failed", nil), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeEmitter{err: tt.err}, nil)
			w := do(t, srv, http.MethodPost, "/api/v1/invoices", marshal(t, validRequest()))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetInvoiceEndpoint(t *testing.T) {
	inv := emittedInvoice()
	srv := newTestServer(t, &fakeEmitter{invoice: inv}, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/invoices/"+inv.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, "2026/15", *got.ExternalInvoiceID)

	w = do(t, srv, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/invoices/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListInvoicesEndpoint(t *testing.T) {
	details := "[E12] CNPJ do tomador inválido"
	failed := model.Invoice{ID: uuid.New(), Status: model.InvoiceStatusFailed, ErrorDetails: &details, RetryCount: 1}
	emitter := &fakeEmitter{failed: []model.Invoice{failed}}
	srv := newTestServer(t, emitter, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/invoices?status=failed&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.ListInvoicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Invoices, 1)
	assert.Equal(t, failed.ID, resp.Invoices[0].ID)
	assert.Equal(t, details, *resp.Invoices[0].ErrorDetails)

	w = do(t, srv, http.MethodGet, "/api/v1/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{10, 50}, emitter.limits)

	tests := []struct {
		name string
		path string
	}{
		{"other status", "/api/v1/invoices?status=emitted"},
		{"zero limit", "/api/v1/invoices?limit=0"},
		{"limit too large", "/api/v1/invoices?limit=501"},
		{"limit not a number", "/api/v1/invoices?limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Len(t, emitter.limits, 2)
}

func TestListInvoicesEndpoint_Empty(t *testing.T) {
	srv := newTestServer(t, &fakeEmitter{}, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"invoices":[],"count":0}`, w.Body.String())
}

func TestPreviewEndpoint(t *testing.T) {
	inv := emittedInvoice()
	emitter := &fakeEmitter{invoice: inv, doc: `<?xml version="1.0" encoding="UTF-8"?>` + "\n<nfse></nfse>"}
	srv := newTestServer(t, emitter, nil)

	w := do(t, srv, http.MethodGet, "/api/v1/invoices/"+inv.ID.String()+"/xml?test=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/xml"))
	assert.Equal(t, emitter.doc, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/v1/invoices/"+inv.ID.String()+"/xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []bool{true, false}, emitter.testMode)

	w = do(t, srv, http.MethodGet, "/api/v1/invoices/"+inv.ID.String()+"/xml?test=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEmitter{}, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/verify", []byte(`<nfse><nf/></nfse>`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response server.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Valid)
	assert.False(t, response.SignatureFound)

	w = do(t, srv, http.MethodPost, "/api/v1/verify", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewServer_RequiresEmitter(t *testing.T) {
	_, err := server.NewServer(&server.Config{}, server.Dependencies{})
	require.Error(t, err)
}
