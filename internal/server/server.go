package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-emitter/internal/emission"
	"github.com/rezonia/nfse-emitter/internal/ipm"
	"github.com/rezonia/nfse-emitter/internal/logger"
	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/validation"
)

// Config holds server configuration
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	Debug          bool
}

// Emitter is the emission workflow used by the API
type Emitter interface {
	Emit(ctx context.Context, req model.InvoiceRequest) (*emission.Result, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	Preview(ctx context.Context, id uuid.UUID, testMode bool) (string, error)
	ListFailed(ctx context.Context, limit int) ([]model.Invoice, error)
}

// Listing limits
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Dependencies are the collaborators of the server
type Dependencies struct {
	Emitter  Emitter
	Verifier *ipm.Verifier
	// Gatherer backs /metrics; nil uses the default prometheus registry
	Gatherer prometheus.Gatherer
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

// Server represents the HTTP API server
type Server struct {
	config  *Config
	router  *gin.Engine
	emitter Emitter
	verify  *ipm.Verifier
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewServer creates a new API server
func NewServer(config *Config, deps Dependencies) (*Server, error) {
	if deps.Emitter == nil {
		return nil, errors.New("emitter is required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Verifier == nil {
		deps.Verifier = ipm.NewVerifier(deps.Clock)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.SetupGin(deps.Clock); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(deps.Logger))

	s := &Server{
		config:  config,
		router:  router,
		emitter: deps.Emitter,
		verify:  deps.Verifier,
		clock:   deps.Clock,
		logger:  deps.Logger.Named("server"),
	}

	s.setupRoutes(deps.Gatherer)
	return s, nil
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/invoices", s.handleEmit)
		v1.GET("/invoices", s.handleListInvoices)
		v1.GET("/invoices/:id", s.handleGetInvoice)
		v1.GET("/invoices/:id/xml", s.handlePreview)

		// Verify signature of a signed document
		v1.POST("/verify", s.handleVerify)
	}
}

// Run starts the HTTP server and shuts it down when ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("address", s.config.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   s.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleEmit(c *gin.Context) {
	var req model.InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		err = validation.Translate(err)
		var verrs model.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
			return
		}
		s.respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	result, err := s.emitter.Emit(ctx, req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if !result.Emitted() {
		status = http.StatusUnprocessableEntity
	}
	resp := EmitResponse{Invoice: result.Invoice}
	if result.Submission != nil {
		resp.Protocol = result.Submission.Protocol
		resp.Messages = result.Submission.Messages
	}
	c.JSON(status, resp)
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	id, ok := s.invoiceID(c)
	if !ok {
		return
	}

	inv, err := s.emitter.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// handleListInvoices lists invoices awaiting an operator. Only status=failed is supported.
func (s *Server) handleListInvoices(c *gin.Context) {
	status := c.DefaultQuery("status", string(model.InvoiceStatusFailed))
	if status != string(model.InvoiceStatusFailed) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported status filter", Details: status})
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit parameter", Details: raw})
			return
		}
		limit = parsed
	}

	invoices, err := s.emitter.ListFailed(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if invoices == nil {
		invoices = []model.Invoice{}
	}
	c.JSON(http.StatusOK, ListInvoicesResponse{Invoices: invoices, Count: len(invoices)})
}

func (s *Server) handlePreview(c *gin.Context) {
	id, ok := s.invoiceID(c)
	if !ok {
		return
	}

	testMode := false
	if raw := c.Query("test"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid test parameter", Details: raw})
			return
		}
		testMode = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	doc, err := s.emitter.Preview(ctx, id, testMode)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(doc))
}

func (s *Server) handleVerify(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}

	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return
	}

	result := s.verify.Verify(body)

	response := VerifyResponse{
		Valid:          result.Valid,
		SignatureFound: result.SignatureFound,
		SignatureValid: result.SignatureValid,
		Trusted:        result.Trusted,
		Warnings:       result.Warnings,
		Errors:         result.Errors,
	}
	if result.Signer != nil {
		response.Signer = &SignerInfoOutput{
			Name:         result.Signer.Name,
			Organization: result.Signer.Organization,
			SerialNumber: result.Signer.SerialNumber,
			Issuer:       result.Signer.Issuer,
			ValidFrom:    &result.Signer.ValidFrom,
			ValidTo:      &result.Signer.ValidTo,
		}
	}

	if result.Valid {
		c.JSON(http.StatusOK, response)
	} else {
		c.JSON(http.StatusUnprocessableEntity, response)
	}
}

func (s *Server) invoiceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid invoice id", Details: c.Param("id")})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps error kinds to status codes
func (s *Server) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var verrs model.ValidationErrors
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verrs):
		resp := ErrorResponse{Error: "validation failed"}
		for _, v := range verrs {
			resp.Fields = append(resp.Fields, FieldError{Field: v.Field, Rule: v.Rule, Message: v.Message})
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Fields: []FieldError{{Field: verr.Field, Rule: verr.Rule, Message: verr.Message}},
		})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Details: err.Error()})
	case errors.Is(err, model.ErrInvalidInvoiceData):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid invoice data", Details: err.Error()})
	case errors.Is(err, ipm.ErrGateway):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "gateway error", Details: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out"})
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
