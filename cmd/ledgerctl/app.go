package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/erp/ledger/internal/application/accounting"
	loanapp "github.com/erp/ledger/internal/application/loan"
	syncapp "github.com/erp/ledger/internal/application/paymentsync"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app is the wired ledger used by every command
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *persistence.Database
	tracer  *telemetry.TracerProvider
	meter   *telemetry.MeterProvider
	logs    *telemetry.LoggerProvider
	metrics *telemetry.LedgerMetrics
	hot     accounting.BalanceHotCache

	ledger *accounting.Ledger
	rules  *syncapp.RuleService
	audit  *syncapp.AuditService
	sync   *syncapp.Orchestrator
	loans  *loanapp.Service
}

func loadConfig(o *rootOptions) (*config.Config, error) {
	if o.configDir != "" {
		return config.LoadFrom(o.configDir)
	}
	return config.Load()
}

func openApp(ctx context.Context, o *rootOptions) (*app, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	a.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize log export: %w", err)
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log = telemetry.Bridge(log, a.logs, level)
	a.log = log

	a.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.metrics, err = telemetry.NewLedgerMetrics(a.meter.Meter("github.com/erp/ledger"))
	if err != nil {
		a.Close()
		return nil, err
	}

	dbOpts := []persistence.Option{
		persistence.WithLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))),
	}
	if cfg.Telemetry.DBTraceEnabled {
		tracing := telemetry.DefaultDBTracingConfig()
		tracing.Enabled = true
		tracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if cfg.Database.Driver == config.DriverSQLite {
			tracing.DBSystem = "sqlite"
		}
		dbOpts = append(dbOpts, persistence.WithTracing(telemetry.NewDBTracingPlugin(tracing, log)))
	}
	a.db, err = persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	// sqlite has no versioned migrations; keep its schema current on open
	if cfg.Database.Driver == config.DriverSQLite {
		if err := a.db.AutoMigrate(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}

	a.hot, err = cache.NewBalanceCacheFactory(cfg.Redis, cache.WithLogger(log.Named("cache"))).CreateCache()
	if err != nil {
		a.Close()
		return nil, err
	}

	scope := persistence.NewGormTransactionScope(a.db.DB)
	bus := event.NewInMemoryEventBus(log.Named("event"))
	a.ledger = accounting.NewLedger(scope, bus, a.hot, nil, log)
	a.rules = syncapp.NewRuleService(scope, log.Named("sync_rules"))
	a.audit = syncapp.NewAuditService(scope, log.Named("sync_audit"))
	a.sync = syncapp.NewOrchestrator(scope, a.rules, a.ledger.Journals, a.ledger.Balances, a.audit,
		syncapp.Config{MaxRetries: cfg.Sync.MaxRetries}, log.Named("sync")).WithMetrics(a.metrics)
	a.loans = loanapp.NewService(scope, a.ledger.Journals, log.Named("loan"))

	return a, nil
}

// Close releases the cache, database and telemetry in reverse order of opening
func (a *app) Close() {
	if c, ok := a.hot.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("Failed to close balance cache", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.meter != nil {
		if err := a.meter.Shutdown(ctx); err != nil {
			a.log.Warn("Failed to shut down meter provider", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.Warn("Failed to shut down tracer", zap.Error(err))
		}
	}
	_ = logger.Sync(a.log)
	if a.logs != nil {
		if err := a.logs.Shutdown(ctx); err != nil {
			a.log.Warn("Failed to shut down log export", zap.Error(err))
		}
	}
}
