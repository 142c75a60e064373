package cmd

import (
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rezonia/nfse-emitter/internal/config"
	"github.com/rezonia/nfse-emitter/internal/database"
	"github.com/rezonia/nfse-emitter/internal/emission"
	"github.com/rezonia/nfse-emitter/internal/ipm"
	ipmxml "github.com/rezonia/nfse-emitter/internal/ipm/xml"
	"github.com/rezonia/nfse-emitter/internal/logger"
	"github.com/rezonia/nfse-emitter/internal/metrics"
	"github.com/rezonia/nfse-emitter/internal/repository"
	"github.com/rezonia/nfse-emitter/internal/resolver"
)

// app wires configuration, storage and services for a command run
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	clock    clockwork.Clock
	db       *gorm.DB
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	tx             repository.TransactionManager
	invoices       repository.InvoiceRepository
	municipalities repository.MunicipalityRepository
	mappings       repository.ServiceTypeTaxMappingRepository
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.Options{ConfigFile: cfgFile, EnvFile: envFile})
	if err != nil {
		return nil, err
	}

	logCfg := logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	if verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
		SlowThreshold:   cfg.Database.SlowThreshold,
	}, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		cfg:            cfg,
		logger:         log,
		clock:          clockwork.NewRealClock(),
		db:             db,
		registry:       registry,
		metrics:        metrics.New(registry),
		tx:             repository.NewTransactionManager(db),
		invoices:       repository.NewInvoiceRepository(db),
		municipalities: repository.NewMunicipalityRepository(db),
		mappings:       repository.NewServiceTypeTaxMappingRepository(db),
	}, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) builder() (*ipmxml.Builder, error) {
	return ipmxml.NewBuilder(ipmxml.BuilderConfig{
		TaxCodes:       resolver.NewTaxCodeResolver(a.mappings, a.metrics, a.logger),
		Municipalities: resolver.NewMunicipalityResolver(a.municipalities, a.cfg.XML.FallbackTomCode, a.metrics, a.logger),
		Rates:          a.cfg.Tax,
		ItemRateSource: a.cfg.XML.ItemRateSource,
		Clock:          a.clock,
		Location:       a.cfg.XML.Location,
		Logger:         a.logger,
	})
}

func (a *app) gateway() (ipm.Client, error) {
	return ipm.New(ipm.Options{
		Mode:      a.cfg.IPM.Mode,
		OutputDir: a.cfg.IPM.OutputDir,
		API: ipm.APIConfig{
			BaseURL:  a.cfg.IPM.BaseURL,
			Username: a.cfg.IPM.Username,
			Password: a.cfg.IPM.Password,
			Timeout:  a.cfg.IPM.Timeout,
		},
		CertPath:     a.cfg.IPM.Signature.CertPath,
		CertPassword: a.cfg.IPM.Signature.CertPassword,
	}, a.clock, a.metrics, a.logger)
}

func (a *app) emitter() (*emission.Service, error) {
	builder, err := a.builder()
	if err != nil {
		return nil, err
	}
	gateway, err := a.gateway()
	if err != nil {
		return nil, err
	}
	return emission.NewService(emission.Config{
		Invoices: a.invoices,
		Builder:  builder,
		Gateway:  gateway,
		TestMode: a.cfg.IPM.TestMode,
		Clock:    a.clock,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
}
