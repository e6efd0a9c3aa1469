// Package normalizer maps an extracted commune onto its canonical catalog entry.
package normalizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"adresse/internal/catalog"
	"adresse/internal/domain"
	"adresse/internal/metrics"
)

// Normalizer replaces the commune with the nearest catalog record. The top
// match is always taken, whatever its score.
type Normalizer struct {
	store      domain.CatalogStore
	collection string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func New(store domain.CatalogStore, collection string, m *metrics.Metrics, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{store: store, collection: collection, metrics: m, logger: logger}
}

// Normalize returns result unchanged when it has no commune, without touching the store.
func (n *Normalizer) Normalize(ctx context.Context, result domain.ExtractionResult) (domain.ExtractionResult, error) {
	if result.Commune == nil {
		n.metrics.ObserveNormalization(metrics.NormalizationPassthrough)
		return result, nil
	}
	raw := *result.Commune

	matches, err := n.store.NearestText(ctx, n.collection, raw, 1)
	if err != nil {
		n.metrics.ObserveNormalization(metrics.NormalizationFailed)
		return result, fmt.Errorf("%w: %v", domain.ErrNormalizationUnavailable, err)
	}
	if len(matches) == 0 {
		n.metrics.ObserveNormalization(metrics.NormalizationFailed)
		return result, fmt.Errorf("%w: no candidate for %q", domain.ErrNormalizationUnavailable, raw)
	}
	best := matches[0]
	name, ok := best.Record.Properties[catalog.NameProperty]
	if !ok {
		n.metrics.ObserveNormalization(metrics.NormalizationFailed)
		return result, fmt.Errorf("%w: match has no %q property", domain.ErrNormalizationUnavailable, catalog.NameProperty)
	}

	if name == raw {
		n.metrics.ObserveNormalization(metrics.NormalizationUnchanged)
	} else {
		n.metrics.ObserveNormalization(metrics.NormalizationCorrected)
		n.logger.Debug("commune normalized",
			zap.String("raw", raw),
			zap.String("canonical", name),
			zap.Float64("score", best.Score))
	}
	return result.WithCommune(name), nil
}
