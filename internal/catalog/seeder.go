package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"adresse/internal/domain"
)

// Seeder loads the catalog into a similarity store collection once.
type Seeder struct {
	store      domain.CatalogStore
	collection string
	catalog    *Catalog
	logger     *zap.Logger
}

func NewSeeder(store domain.CatalogStore, collection string, catalog *Catalog, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{store: store, collection: collection, catalog: catalog, logger: logger}
}

// Seed creates the collection and inserts every commune when the collection is missing.
// An existing collection is left untouched, whatever it contains. When the
// insert fails the new collection is deleted again.
func (s *Seeder) Seed(ctx context.Context) (bool, error) {
	exists, err := s.store.Exists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		s.logger.Debug("catalog collection already present", zap.String("collection", s.collection))
		return false, nil
	}
	schema := domain.Schema{
		Description:  "Class from " + s.collection,
		TextProperty: NameProperty,
	}
	if err := s.store.Create(ctx, s.collection, schema); err != nil {
		return false, fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	if err := s.store.InsertMany(ctx, s.collection, s.catalog.Records()); err != nil {
		// Drop the half-built collection so the next Seed starts over.
		if derr := s.store.Delete(context.WithoutCancel(ctx), s.collection); derr != nil {
			s.logger.Error("failed to drop partially seeded collection",
				zap.String("collection", s.collection), zap.Error(derr))
			err = errors.Join(err, derr)
		}
		return false, fmt.Errorf("insert catalog into %s: %w", s.collection, err)
	}
	s.logger.Info("catalog seeded",
		zap.String("collection", s.collection),
		zap.Int("communes", len(s.catalog.Communes)),
	)
	return true, nil
}
