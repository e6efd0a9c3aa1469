// Package app assembles the pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"adresse/internal/catalog"
	"adresse/internal/config"
	"adresse/internal/domain"
	"adresse/internal/embedding"
	"adresse/internal/llm"
	"adresse/internal/metrics"
	"adresse/internal/normalizer"
	"adresse/internal/service"
	"adresse/internal/vectorstore/chromem"
	"adresse/internal/vectorstore/qdrant"
)

// App holds the constructed clients. Nothing here is a package-level singleton.
type App struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Catalog  *catalog.Catalog
	Store    domain.CatalogStore
	Model    domain.ChatModel
	Service  *service.ExtractionService
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	closers []io.Closer
}

// New builds the catalog, embedder, store, model and service described by cfg.
// The store is not seeded; call Seed for that.
func New(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	promptData, err := catalog.DefaultPrompt()
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(cfg.Embedder, cat.Communes)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Catalog: cat}
	if err := a.openStore(emb); err != nil {
		return nil, err
	}

	model, err := llm.New(cfg.Model, logger.Named("llm"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("model: %w", err)
	}
	a.Model = model

	a.Registry = prometheus.NewRegistry()
	a.Metrics = metrics.New(a.Registry)

	var vocabulary []string
	if cfg.Catalog.IncludeInPrompt {
		vocabulary = cat.Communes
	}
	norm := normalizer.New(a.Store, cfg.Store.Collection, a.Metrics, logger.Named("normalizer"))
	a.Service = service.NewExtractionService(model, norm, service.Options{
		Vocabulary:  vocabulary,
		Examples:    promptData.Examples,
		Aliases:     promptData.Aliases,
		Concurrency: cfg.Batch.Concurrency,
		Metrics:     a.Metrics,
		Logger:      logger.Named("service"),
	})

	logger.Debug("pipeline ready",
		zap.String("model", model.Name()),
		zap.String("embedder", emb.Name()),
		zap.String("store", cfg.Store.Type),
		zap.Int("communes", len(cat.Communes)))
	return a, nil
}

func (a *App) openStore(emb domain.Embedder) error {
	cfg := a.Config.Store
	logger := a.Logger.Named("store")
	switch cfg.Type {
	case "chromem", "":
		s, err := chromem.NewStorage(chromem.Config{Path: cfg.Chromem.Path, Compress: cfg.Chromem.Compress}, emb, logger)
		if err != nil {
			return err
		}
		a.Store = s
	case "qdrant":
		qc := cfg.Qdrant
		if qc == nil {
			qc = &config.QdrantConfig{}
		}
		s, err := qdrant.NewStorage(qdrant.Config{
			Host:   qc.Host,
			Port:   qc.Port,
			APIKey: os.Getenv(qc.APIKeyEnv),
			UseTLS: qc.UseTLS,
		}, emb, logger)
		if err != nil {
			return err
		}
		a.Store = s
		a.closers = append(a.closers, s)
	default:
		return fmt.Errorf("unknown store: %s", cfg.Type)
	}
	return nil
}

// Seed loads the catalog into the store when its collection is missing.
func (a *App) Seed(ctx context.Context) (bool, error) {
	return catalog.NewSeeder(a.Store, a.Config.Store.Collection, a.Catalog, a.Logger.Named("seeder")).Seed(ctx)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health checks the store collection and, when supported, the model endpoint.
func (a *App) Health(ctx context.Context) error {
	ok, err := a.Store.Exists(ctx, a.Config.Store.Collection)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if !ok {
		return fmt.Errorf("store: collection %s not seeded", a.Config.Store.Collection)
	}
	if p, ok := a.Model.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("model: %w", err)
		}
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
