// Package qdrant stores the catalog in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"adresse/internal/domain"
	"adresse/internal/vectorstore"
)

type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Storage implements domain.CatalogStore. Vectors are computed locally by the
// embedder and compared with cosine distance.
type Storage struct {
	client   *qdrant.Client
	embedder domain.Embedder
	schemas  vectorstore.Schemas
	logger   *zap.Logger
}

func NewStorage(cfg Config, embedder domain.Embedder, logger *zap.Logger) (*Storage, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	logger.Debug("qdrant client ready", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return &Storage{client: client, embedder: embedder, logger: logger}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("qdrant collection exists: %w", err)
	}
	return ok, nil
}

// Create makes a cosine collection sized to the embedder. Remote embedders
// only learn their dimension on first use, so the description is embedded once.
func (s *Storage) Create(ctx context.Context, name string, schema domain.Schema) error {
	dim := s.embedder.Dimension()
	if dim == 0 {
		probe := schema.Description
		if probe == "" {
			probe = name
		}
		v, err := s.embedder.Embed(ctx, probe)
		if err != nil {
			return fmt.Errorf("probe embedding dimension: %w", err)
		}
		dim = len(v)
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", name, err)
	}
	s.schemas.Store(name, schema)
	return nil
}

// Delete drops the collection when it exists.
func (s *Storage) Delete(ctx context.Context, name string) error {
	ok, err := s.Exists(ctx, name)
	if err != nil || !ok {
		return err
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("qdrant delete collection %s: %w", name, err)
	}
	s.schemas.Delete(name)
	return nil
}

func (s *Storage) InsertMany(ctx context.Context, name string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	prop := s.schemas.TextProperty(name)
	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, r := range records {
		text := r.Properties[prop]
		if text == "" {
			return fmt.Errorf("record %d has no %q property", i, prop)
		}
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed %q: %w", text, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(vectorstore.RecordID(name, text)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: toPayload(r.Properties),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert into %s: %w", name, err)
	}
	s.logger.Debug("inserted records", zap.String("collection", name), zap.Int("count", len(points)))
	return nil
}

func (s *Storage) NearestText(ctx context.Context, name, query string, topK int) ([]domain.ScoredMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query %s: %w", name, err)
	}
	matches := make([]domain.ScoredMatch, 0, len(res))
	for _, p := range res {
		matches = append(matches, domain.ScoredMatch{
			Record: domain.Record{Properties: fromPayload(p.GetPayload())},
			Score:  float64(p.GetScore()),
		})
	}
	return matches, nil
}

func toPayload(props map[string]string) map[string]*qdrant.Value {
	m := make(map[string]any, len(props))
	for k, v := range props {
		m[k] = v
	}
	return qdrant.NewValueMap(m)
}

func fromPayload(payload map[string]*qdrant.Value) map[string]string {
	props := make(map[string]string, len(payload))
	for k, v := range payload {
		if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			props[k] = s.StringValue
		}
	}
	return props
}
