// Package emission runs the invoice emission workflow: validate, persist, build the
// gateway document, submit it and record the outcome.
package emission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-emitter/internal/ipm"
	ipmxml "github.com/rezonia/nfse-emitter/internal/ipm/xml"
	"github.com/rezonia/nfse-emitter/internal/metrics"
	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/repository"
	"github.com/rezonia/nfse-emitter/internal/validation"
)

// Outcome labels
const (
	OutcomeEmitted     = "emitted"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
	OutcomeInvalidData = "invalid_data"
)

// DocumentBuilder renders the gateway document of an invoice
type DocumentBuilder interface {
	Build(ctx context.Context, inv *model.Invoice, opts ipmxml.BuildOptions) (string, error)
}

// Config holds the collaborators of a Service
type Config struct {
	Invoices  repository.InvoiceRepository
	Builder   DocumentBuilder
	Gateway   ipm.Client
	Validator *validator.Validate

	// TestMode forces every submission into gateway test mode
	TestMode bool
	Clock    clockwork.Clock
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Service emits invoices
type Service struct {
	invoices repository.InvoiceRepository
	builder  DocumentBuilder
	gateway  ipm.Client
	validate *validator.Validate
	testMode bool
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Result is the outcome of one emission
type Result struct {
	Invoice    *model.Invoice
	Submission *ipm.SubmitResult
}

// Emitted reports whether the gateway issued the invoice
func (r *Result) Emitted() bool {
	return r.Invoice.Status == model.InvoiceStatusEmitted
}

// NewService creates a new emission service
func NewService(cfg Config) (*Service, error) {
	if cfg.Invoices == nil || cfg.Builder == nil || cfg.Gateway == nil {
		return nil, errors.New("invoice repository, builder and gateway are required")
	}

	s := &Service{
		invoices: cfg.Invoices,
		builder:  cfg.Builder,
		gateway:  cfg.Gateway,
		validate: cfg.Validator,
		testMode: cfg.TestMode,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.validate == nil {
		v, err := validation.New(s.clock)
		if err != nil {
			return nil, err
		}
		s.validate = v
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("emission")
	return s, nil
}

// Emit validates req, stores it as a pending invoice and submits it to the gateway.
//
// A request that fails validation returns model.ValidationErrors and stores nothing.
// Once stored, the invoice always ends up emitted or failed. A gateway rejection is
// not an error: the returned invoice is failed and Submission carries the messages.
// Build and delivery failures are returned after the failure has been recorded.
func (s *Service) Emit(ctx context.Context, req model.InvoiceRequest) (*Result, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, validation.Translate(err)
	}

	inv, err := req.ToInvoice()
	if err != nil {
		return nil, err
	}
	inv.CreatedAt = s.clock.Now().UTC()

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to store invoice: %w", err)
	}

	log := s.logger.With(
		zap.String("invoice_id", inv.ID.String()),
		zap.String("client_id", inv.ClientID),
	)
	testMode := req.TestMode || s.testMode

	start := s.clock.Now()
	doc, err := s.builder.Build(ctx, inv, ipmxml.BuildOptions{TestMode: testMode})
	s.metrics.ObserveBuildLatency(s.clock.Since(start))
	if err != nil {
		outcome := OutcomeFailed
		if errors.Is(err, model.ErrInvalidInvoiceData) {
			outcome = OutcomeInvalidData
		}
		log.Error("document build failed", zap.Error(err))
		return nil, s.fail(ctx, inv, outcome, err)
	}
	inv.SetPayload(doc)

	submission, err := s.gateway.Submit(ctx, doc, testMode)
	if err != nil {
		log.Error("gateway submission failed", zap.Error(err))
		return nil, s.fail(ctx, inv, OutcomeFailed, err)
	}

	now := s.clock.Now().UTC()
	outcome := OutcomeEmitted
	if submission.Success {
		inv.MarkAsEmitted(submission.InvoiceNumber, submission.VerificationCode, submission.PdfURL, submission.RawResponse, now)
		log.Info("invoice emitted",
			zap.String("invoice_number", submission.InvoiceNumber),
			zap.Bool("test_mode", testMode),
		)
	} else {
		outcome = OutcomeRejected
		if submission.RawResponse != "" {
			raw := submission.RawResponse
			inv.XMLResponse = &raw
		}
		inv.MarkAsFailed(rejection(submission), now)
		log.Warn("invoice rejected by gateway", zap.Strings("messages", submission.Messages))
	}

	if err := s.invoices.Update(context.WithoutCancel(ctx), inv); err != nil {
		return nil, fmt.Errorf("failed to record outcome of invoice %s: %w", inv.ID, err)
	}
	s.metrics.IncrementOutcome(outcome, s.gateway.Mode())

	return &Result{Invoice: inv, Submission: submission}, nil
}

// fail records cause on the invoice and returns it
func (s *Service) fail(ctx context.Context, inv *model.Invoice, outcome string, cause error) error {
	inv.MarkAsFailed(cause.Error(), s.clock.Now().UTC())
	s.metrics.IncrementOutcome(outcome, s.gateway.Mode())

	if err := s.invoices.Update(context.WithoutCancel(ctx), inv); err != nil {
		s.logger.Error("failed to record failure",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}
	return cause
}

func rejection(r *ipm.SubmitResult) string {
	if len(r.Messages) == 0 {
		return "rejected by gateway"
	}
	return strings.Join(r.Messages, "; ")
}

// Get returns a stored invoice
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return s.invoices.FindByID(ctx, id)
}

// Preview rebuilds the gateway document of a stored invoice without submitting it
func (s *Service) Preview(ctx context.Context, id uuid.UUID, testMode bool) (string, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	start := s.clock.Now()
	doc, err := s.builder.Build(ctx, inv, ipmxml.BuildOptions{TestMode: testMode || s.testMode})
	s.metrics.ObserveBuildLatency(s.clock.Since(start))
	return doc, err
}

// ListFailed returns up to limit failed invoices
func (s *Service) ListFailed(ctx context.Context, limit int) ([]model.Invoice, error) {
	return s.invoices.ListByStatus(ctx, model.InvoiceStatusFailed, limit)
}
