// Package ipm delivers NFS-e documents to the IPM gateway, either over HTTP or,
// for development, to files on disk.
package ipm

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-emitter/internal/metrics"
)

// Gateway modes
const (
	ModeFile = "file"
	ModeAPI  = "api"
)

// Client submits documents to the gateway
type Client interface {
	// Submit sends one document. testMode asks the gateway to validate without issuing.
	Submit(ctx context.Context, xml string, testMode bool) (*SubmitResult, error)
	// Query looks up a previous submission by protocol
	Query(ctx context.Context, protocol string) (*QueryResult, error)
	// Cancel requests cancellation of an issued invoice
	Cancel(ctx context.Context, invoiceNumber, reason string) (*CancelResult, error)
	// Mode names the transport, used as a metrics label
	Mode() string
}

// SubmitResult is the gateway's answer to a submission
type SubmitResult struct {
	Success          bool     `json:"success"`
	Protocol         string   `json:"protocol,omitempty"`
	InvoiceNumber    string   `json:"invoice_number,omitempty"`
	VerificationCode string   `json:"verification_code,omitempty"`
	PdfURL           string   `json:"pdf_url,omitempty"`
	Messages         []string `json:"messages,omitempty"`
	RawResponse      string   `json:"-"`
}

// QueryResult is the outcome of a status lookup
type QueryResult struct {
	Found            bool   `json:"found"`
	Status           string `json:"status,omitempty"`
	InvoiceNumber    string `json:"invoice_number,omitempty"`
	VerificationCode string `json:"verification_code,omitempty"`
}

// CancelResult is the outcome of a cancellation request
type CancelResult struct {
	Success  bool     `json:"success"`
	Messages []string `json:"messages,omitempty"`
}

// Options selects and configures a Client
type Options struct {
	Mode      string
	OutputDir string
	API       APIConfig
	// CertPath points to a PFX bundle; when set, API submissions are signed
	CertPath     string
	CertPassword string
}

// New creates the client for opts.Mode
func New(opts Options, clock clockwork.Clock, m *metrics.Metrics, logger *zap.Logger) (Client, error) {
	switch opts.Mode {
	case ModeFile:
		return NewFileClient(opts.OutputDir, clock, logger)
	case ModeAPI:
		cfg := opts.API
		if opts.CertPath != "" {
			signer, err := LoadSigner(opts.CertPath, opts.CertPassword)
			if err != nil {
				return nil, NewGatewayError(ErrCodeSignature, ModeAPI, "cannot load signing certificate", err)
			}
			cfg.Signer = signer
		}
		return NewAPIClient(cfg, clock, m, logger)
	default:
		return nil, fmt.Errorf("unsupported gateway mode %q", opts.Mode)
	}
}
