package ipm_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rezonia/nfse-emitter/internal/ipm"
	"github.com/rezonia/nfse-emitter/internal/metrics"
)

const acceptedResponse = `<?xml version="1.0" encoding="UTF-8"?>
<retorno><sucesso>true</sucesso><mensagem>NFS-e emitida</mensagem><numero_nfse>2026/15</numero_nfse><cod_verificador_autenticidade>ABC123</cod_verificador_autenticidade><link_pdf>https://example.com/2026-15.pdf</link_pdf></retorno>`

// gateway records what the fake gateway received
type gateway struct {
	mu       sync.Mutex
	uploads  []string
	cookies  []string
	users    []string
	filename string
	partType string
}

func (g *gateway) handler(status int, response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		user, pass, _ := r.BasicAuth()
		g.users = append(g.users, user+":"+pass)

		if c, err := r.Cookie("PHPSESSID"); err == nil {
			g.cookies = append(g.cookies, c.Value)
		} else {
			g.cookies = append(g.cookies, "")
		}

		file, header, err := r.FormFile("xml")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		g.uploads = append(g.uploads, string(body))
		g.filename = header.Filename
		g.partType = header.Header.Get("Content-Type")

		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "session-1", Path: "/"})
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}
}

func newAPIClient(t *testing.T, url string, signer *ipm.Signer, m *metrics.Metrics) *ipm.APIClient {
	t.Helper()
	client, err := ipm.NewAPIClient(ipm.APIConfig{
		BaseURL:  url,
		Username: "12345678000195",
		Password: "secret",
		Timeout:  5 * time.Second,
		Signer:   signer,
	}, nil, m, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestAPIClient_Submit(t *testing.T) {
	gw := &gateway{}
	srv := httptest.NewServer(gw.handler(http.StatusOK, acceptedResponse))
	defer srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	client := newAPIClient(t, srv.URL, nil, m)

	result, err := client.Submit(context.Background(), sampleDocument, true)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "2026/15", result.InvoiceNumber)
	assert.Equal(t, "ABC123", result.VerificationCode)
	assert.Equal(t, "https://example.com/2026-15.pdf", result.PdfURL)

	require.Len(t, gw.uploads, 1)
	assert.Equal(t, sampleDocument, gw.uploads[0])
	assert.Equal(t, "invoice.xml", gw.filename)
	assert.Equal(t, "text/xml", gw.partType)
	assert.Equal(t, []string{"12345678000195:secret"}, gw.users)

	assert.Equal(t, 1, testutil.CollectAndCount(m.SubmitLatency))
	assert.Equal(t, ipm.ModeAPI, client.Mode())
}

func TestAPIClient_KeepsSessionCookie(t *testing.T) {
	gw := &gateway{}
	srv := httptest.NewServer(gw.handler(http.StatusOK, acceptedResponse))
	defer srv.Close()

	client := newAPIClient(t, srv.URL, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := client.Submit(context.Background(), sampleDocument, false)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"", "session-1"}, gw.cookies)
}

func TestAPIClient_OutcomeComesFromBody(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		success bool
	}{
		{"accepted with error status", http.StatusInternalServerError, acceptedResponse, true},
		{"rejected with ok status", http.StatusOK, `<retorno><sucesso>false</sucesso><erro><codigo>1</codigo><descricao>x</descricao></erro></retorno>`, false},
		{"non xml body", http.StatusBadGateway, "bad gateway <", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &gateway{}
			srv := httptest.NewServer(gw.handler(tt.status, tt.body))
			defer srv.Close()

			result, err := newAPIClient(t, srv.URL, nil, nil).Submit(context.Background(), sampleDocument, false)
			require.NoError(t, err)
			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, tt.body, result.RawResponse)
		})
	}
}

func TestAPIClient_DoesNotFollowRedirects(t *testing.T) {
	var hits int
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, acceptedResponse)
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer srv.Close()

	result, err := newAPIClient(t, srv.URL, nil, nil).Submit(context.Background(), sampleDocument, false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, hits)
}

func TestAPIClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newAPIClient(t, url, nil, nil).Submit(context.Background(), sampleDocument, false)
	require.Error(t, err)

	var gwErr *ipm.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, ipm.ErrCodeTransport, gwErr.Code)
	assert.True(t, errors.Is(err, ipm.ErrGateway))
}

func TestAPIClient_SignsDocument(t *testing.T) {
	key, cert := newTestCert(t, "LAVA CAR CONCORDIA LTDA:12345678000195")
	signer, err := ipm.NewSigner(key, cert)
	require.NoError(t, err)

	gw := &gateway{}
	srv := httptest.NewServer(gw.handler(http.StatusOK, acceptedResponse))
	defer srv.Close()

	_, err = newAPIClient(t, srv.URL, signer, nil).Submit(context.Background(), sampleDocument, false)
	require.NoError(t, err)

	require.Len(t, gw.uploads, 1)
	verification := ipm.NewVerifier(nil, cert).Verify([]byte(gw.uploads[0]))
	assert.True(t, verification.Valid, "errors: %v", verification.Errors)
	assert.True(t, verification.Trusted)
}

func TestAPIClient_QueryAndCancel(t *testing.T) {
	client := newAPIClient(t, "http://127.0.0.1:1", nil, nil)

	q, err := client.Query(context.Background(), "2026/15")
	require.NoError(t, err)
	assert.False(t, q.Found)
	assert.NotEmpty(t, q.Status)

	c, err := client.Cancel(context.Background(), "2026/15", "erro de digitação")
	require.NoError(t, err)
	assert.False(t, c.Success)
}

func TestNew(t *testing.T) {
	fileClient, err := ipm.New(ipm.Options{Mode: ipm.ModeFile, OutputDir: t.TempDir()}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ipm.ModeFile, fileClient.Mode())

	apiClient, err := ipm.New(ipm.Options{Mode: ipm.ModeAPI, API: ipm.APIConfig{BaseURL: "http://localhost"}}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ipm.ModeAPI, apiClient.Mode())

	_, err = ipm.New(ipm.Options{Mode: ipm.ModeAPI, API: ipm.APIConfig{BaseURL: "http://localhost"}, CertPath: "missing.pfx"}, nil, nil, nil)
	require.ErrorIs(t, err, ipm.ErrGateway)

	_, err = ipm.New(ipm.Options{Mode: "soap"}, nil, nil, nil)
	require.Error(t, err)
}
