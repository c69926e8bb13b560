package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/repositories/postgres"
	"github.com/upb/llm-router/services/batch"
	"github.com/upb/llm-router/services/complexity"
	"github.com/upb/llm-router/services/discovery"
	"github.com/upb/llm-router/services/performance"
	"github.com/upb/llm-router/services/profile"
	"github.com/upb/llm-router/services/resources"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/services/scoring"
	"github.com/upb/llm-router/services/transport"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *sql.DB // nil when metrics persistence is disabled
	Logger *zap.Logger

	// Transport
	Client transport.Client

	// Services
	Discovery  *discovery.Service
	Profiler   *profile.Profiler
	Tracker    *performance.Tracker
	Estimator  *resources.Estimator
	Classifier *complexity.Classifier
	Engine     *scoring.Engine
	Router     *routing.Service
	Executor   *batch.Executor
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects to PostgreSQL when metrics persistence is enabled.
// Without a database the tracker runs in-memory only.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled {
		d.Logger.Info("metrics persistence disabled, tracker runs in-memory")
		return nil
	}

	db, err := postgres.Open(ctx, &cfg.Database, d.Logger)
	if err != nil {
		return err
	}

	if err := postgres.InitSchema(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	d.DB = db
	return nil
}

// initServices wires the router service graph bottom-up
func (d *Dependencies) initServices(ctx context.Context, cfg *config.Config) error {
	descriptors, err := cfg.LoadBackends()
	if err != nil {
		return err
	}

	d.Client = transport.NewHTTPClient(d.Logger)

	d.Discovery = discovery.New(descriptors, d.Client, discovery.Config{
		TTL:          cfg.Router.DiscoveryTTL,
		ProbeTimeout: cfg.Router.ProbeTimeout,
	}, d.Logger)

	d.Profiler = profile.NewProfiler()

	var store repositories.MetricsStore
	if d.DB != nil {
		store = postgres.NewMetricsRepository(d.DB, d.Logger)
	}
	d.Tracker = performance.NewTracker(store, performance.Config{FlushEvery: cfg.Router.FlushEvery}, d.Logger)
	if err := d.Tracker.Load(ctx); err != nil {
		return fmt.Errorf("failed to load persisted metrics: %w", err)
	}

	d.Estimator = resources.NewEstimator(d.Discovery, d.Profiler, resources.Config{
		TTL:             cfg.Router.ResourceTTL,
		CapacityCeiling: cfg.Batch.MaxConcurrency,
	}, d.Logger)

	d.Classifier = complexity.NewClassifier(d.Logger)

	d.Engine = scoring.NewEngine(d.Discovery, d.Profiler, d.Tracker, scoring.Config{
		QualityFloor:          cfg.Router.QualityFloor,
		MinPerformanceSamples: cfg.Router.MinPerformanceSamples,
	}, d.Logger)

	d.Router = routing.New(d.Classifier, d.Engine, d.Discovery, d.Tracker, d.Client, routing.Config{
		MaxAttempts: cfg.Router.MaxCallAttempts,
		CallTimeout: cfg.Router.CallTimeout,
	}, d.Logger)

	d.Executor = batch.NewExecutor(d.Estimator, batch.Config{
		BaseConcurrency: cfg.Batch.BaseConcurrency,
		MaxConcurrency:  cfg.Batch.MaxConcurrency,
	}, batch.BreakerConfig{
		FailureRateThreshold: cfg.Breaker.FailureRateThreshold,
		ConsecutiveFailures:  cfg.Breaker.ConsecutiveFailures,
		MinSamples:           cfg.Breaker.MinSamples,
		Cooldown:             cfg.Breaker.Cooldown,
		SuccessThreshold:     cfg.Breaker.SuccessThreshold,
	}, d.Logger)

	d.Logger.Info("router services initialized",
		zap.Int("backends", len(descriptors)),
		zap.Bool("persistence", d.DB != nil))

	return nil
}

// Close gracefully shuts down all dependencies, flushing pending metrics
// before the database connection goes away
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Tracker != nil {
		if err := d.Tracker.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush metrics: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
