// Package app assembles the catalog, similarity engine, suggestion source
// and job registry into one running service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icewall905/tuneforge/internal/catalog"
	"github.com/icewall905/tuneforge/internal/config"
	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/expansion"
	httpapp "github.com/icewall905/tuneforge/internal/http"
	"github.com/icewall905/tuneforge/internal/logger"
	"github.com/icewall905/tuneforge/internal/metrics"
	"github.com/icewall905/tuneforge/internal/similarity"
	"github.com/icewall905/tuneforge/internal/store"
	"github.com/icewall905/tuneforge/internal/suggest"
)

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *store.DB
	Engine   *similarity.Engine
	Resolver *catalog.Resolver
	Source   suggest.Source
	Registry *expansion.Registry
	Metrics  *metrics.Metrics
}

// Options lets callers swap the suggestion source, mostly for tests.
type Options struct {
	Source suggest.Source
}

// New opens the catalog and wires every component. The caller owns Close.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.Default()
	}

	db, err := store.Open(cfg.Database.Path, store.Options{Migrate: cfg.Database.Migrate, Logger: log})
	if err != nil {
		return nil, err
	}

	if ok, missing := db.ValidateSchema(context.Background()); !ok {
		log.Warn("Catalog is missing feature columns, jobs will fail until it is fixed",
			"path", cfg.Database.Path, "missing", missing)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	engine := similarity.NewEngine(db, similarity.Options{
		Weights:         domain.WeightsFromMap(cfg.Similarity.Weights),
		StatsTTL:        cfg.Similarity.StatsTTL.Std(),
		VectorCacheSize: cfg.Similarity.VectorCacheSize,
		Logger:          log,
		Observer:        m,
	})

	resolver := catalog.NewResolver(db, catalog.ResolverOptions{Logger: log})

	source := opts.Source
	if source == nil {
		source, err = suggest.FromConfig(cfg.Suggest, log, m.BreakerStateChanged)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	runner := expansion.NewRunner(db, engine, resolver, source, expansion.RunnerConfig{
		ContextWindow:      cfg.Expansion.ContextWindow,
		CandidatesPerRound: cfg.Expansion.CandidatesPerRound,
		SuggestionTimeout:  cfg.Expansion.SuggestionTimeout.Std(),
	}, log, m)

	registry := expansion.NewRegistry(runner, db, expansion.RegistryConfig{
		DefaultThreshold:   cfg.Expansion.DefaultThreshold,
		DefaultMaxAttempts: cfg.Expansion.MaxAttempts,
		MaxConcurrentJobs:  cfg.Expansion.MaxConcurrentJobs,
		JobRetention:       cfg.Expansion.JobRetention,
	}, log)
	registry.Recover(context.Background())

	return &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Engine:   engine,
		Resolver: resolver,
		Source:   source,
		Registry: registry,
		Metrics:  m,
	}, nil
}

// Handler builds the API handler with /metrics mounted.
func (a *App) Handler() *httpapp.Handler {
	metricsHandler := promhttp.HandlerFor(a.Metrics.Registry(), promhttp.HandlerOpts{})
	h := httpapp.NewHandler(a.Registry, a.Engine, a.DB, metricsHandler, a.Logger)
	h.HistoryLimit = a.Config.Expansion.JobRetention
	return h
}

// Close stops running jobs, waiting until ctx is done, then closes the catalog.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Registry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("jobs did not stop in time: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
