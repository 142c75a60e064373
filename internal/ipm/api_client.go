package ipm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-emitter/internal/metrics"
)

const (
	formField    = "xml"
	formFilename = "invoice.xml"
	maxBodySize  = 4 << 20
)

// APIConfig holds gateway connection settings
type APIConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// Signer signs documents before upload; nil sends them unsigned
	Signer *Signer
}

// APIClient posts documents to the IPM gateway as multipart/form-data. Session
// cookies set by the gateway are kept for later calls. Each submission is a
// single attempt.
type APIClient struct {
	cfg     APIConfig
	http    *http.Client
	clock   clockwork.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAPIClient creates a new gateway client
func NewAPIClient(cfg APIConfig, clock clockwork.Clock, m *metrics.Metrics, logger *zap.Logger) (*APIClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	logger = logger.Named("ipm.api")
	logger.Info("api gateway initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
		zap.Bool("signature", cfg.Signer != nil),
	)

	return &APIClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		clock:   clock,
		metrics: m,
		logger:  logger,
	}, nil
}

// Mode implements Client
func (c *APIClient) Mode() string {
	return ModeAPI
}

// Submit uploads one document. The outcome is read from the response body
// regardless of the HTTP status.
func (c *APIClient) Submit(ctx context.Context, xml string, testMode bool) (*SubmitResult, error) {
	payload := xml
	if c.cfg.Signer != nil {
		signed, err := c.cfg.Signer.Sign(xml)
		if err != nil {
			return nil, NewGatewayError(ErrCodeSignature, ModeAPI, "cannot sign document", err)
		}
		payload = signed
	}

	body, contentType, err := multipartBody(payload)
	if err != nil {
		return nil, NewGatewayError(ErrCodeInvalidDocument, ModeAPI, "cannot build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, body)
	if err != nil {
		return nil, NewGatewayError(ErrCodeTransport, ModeAPI, "cannot build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	c.logger.Info("submitting document", zap.Bool("test_mode", testMode))

	start := c.clock.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveSubmitLatency(ModeAPI, c.clock.Since(start))
	if err != nil {
		return nil, NewGatewayError(ErrCodeTransport, ModeAPI, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewGatewayError(ErrCodeTransport, ModeAPI, "cannot read response", err)
	}

	c.logger.Debug("gateway response",
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", raw),
	)

	result := ParseResponse(string(raw))
	if result.Success {
		c.logger.Info("submission accepted",
			zap.String("invoice_number", result.InvoiceNumber),
			zap.String("verification_code", result.VerificationCode),
		)
	} else {
		c.logger.Warn("submission rejected",
			zap.Int("status", resp.StatusCode),
			zap.Strings("messages", result.Messages),
		)
	}
	return result, nil
}

// Query is not offered by the gateway integration
func (c *APIClient) Query(ctx context.Context, protocol string) (*QueryResult, error) {
	c.logger.Warn("query not available", zap.String("protocol", protocol))
	return &QueryResult{
		Found:  false,
		Status: "Query operation not available in current IPM API implementation",
	}, nil
}

// Cancel is not offered by the gateway integration
func (c *APIClient) Cancel(ctx context.Context, invoiceNumber, reason string) (*CancelResult, error) {
	c.logger.Warn("cancel not available",
		zap.String("invoice_number", invoiceNumber),
		zap.String("reason", reason),
	)
	return &CancelResult{
		Success:  false,
		Messages: []string{"Cancellation operation not available in current IPM API implementation"},
	}, nil
}

func multipartBody(xml string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, formField, formFilename))
	header.Set("Content-Type", "text/xml")

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, xml); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
