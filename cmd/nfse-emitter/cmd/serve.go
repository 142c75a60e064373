package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-emitter/internal/ipm"
	"github.com/rezonia/nfse-emitter/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for emitting invoices.

The API provides endpoints for:
  - POST /api/v1/invoices          - Emit an invoice
  - GET  /api/v1/invoices/:id      - Get a stored invoice
  - GET  /api/v1/invoices/:id/xml  - Preview the gateway document (?test=true)
  - POST /api/v1/verify            - Verify the signature of a signed document
  - GET  /metrics                  - Prometheus metrics
  - GET  /health                   - Health check

Flags override the [server] section of the configuration.

Examples:
  # Start server with configured address
  nfse-emitter serve

  # Start on custom port in debug mode
  nfse-emitter serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	emitter, err := a.emitter()
	if err != nil {
		return err
	}

	config := &server.Config{
		Address:      a.cfg.Server.Address,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		Debug:        a.cfg.Server.Debug,
	}
	flags := cmd.Flags()
	if flags.Changed("address") {
		config.Address = serverAddr
	}
	if flags.Changed("debug") {
		config.Debug = serverDebug
	}
	if flags.Changed("read-timeout") {
		config.ReadTimeout = readTimeout
	}
	if flags.Changed("write-timeout") {
		config.WriteTimeout = writeTimeout
	}

	roots, err := ipm.LoadTrustedRoots(a.cfg.IPM.Signature.CAFile)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(config, server.Dependencies{
		Emitter:  emitter,
		Verifier: ipm.NewVerifier(a.clock, roots...),
		Gatherer: a.registry,
		Clock:    a.clock,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting server",
		zap.String("address", config.Address),
		zap.String("gateway", a.cfg.IPM.Mode),
		zap.Bool("test_mode", a.cfg.IPM.TestMode),
	)
	return srv.Run(ctx)
}
