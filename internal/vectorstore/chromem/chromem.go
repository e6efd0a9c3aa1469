// Package chromem stores the catalog in an embedded chromem-go database.
package chromem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"adresse/internal/domain"
	"adresse/internal/vectorstore"
)

// Config selects between an in-memory database (empty Path) and a persistent one.
type Config struct {
	Path     string
	Compress bool
}

// Storage implements domain.CatalogStore on top of chromem-go.
type Storage struct {
	db       *chromem.DB
	embedder domain.Embedder
	schemas  vectorstore.Schemas
	logger   *zap.Logger
}

func NewStorage(cfg Config, embedder domain.Embedder, logger *zap.Logger) (*Storage, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db := chromem.NewDB()
	if cfg.Path != "" {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create chromem directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db: %w", err)
		}
		logger.Debug("opened persistent chromem db", zap.String("path", path))
	}
	return &Storage{db: db, embedder: embedder, logger: logger}, nil
}

func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

func (s *Storage) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	}
}

func (s *Storage) collection(name string) *chromem.Collection {
	return s.db.GetCollection(name, s.embeddingFunc())
}

func (s *Storage) Exists(_ context.Context, name string) (bool, error) {
	return s.collection(name) != nil, nil
}

func (s *Storage) Create(_ context.Context, name string, schema domain.Schema) error {
	if s.collection(name) != nil {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionExists, name)
	}
	meta := map[string]string{
		"description":   schema.Description,
		"text_property": schema.TextProperty,
	}
	if _, err := s.db.CreateCollection(name, meta, s.embeddingFunc()); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	s.schemas.Store(name, schema)
	return nil
}

// Delete drops the collection and its persisted files. A missing collection is not an error.
func (s *Storage) Delete(_ context.Context, name string) error {
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	s.schemas.Delete(name)
	return nil
}

// InsertMany embeds and stores the records. The text property becomes the
// document content; every property is kept as metadata.
func (s *Storage) InsertMany(ctx context.Context, name string, records []domain.Record) error {
	col := s.collection(name)
	if col == nil {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	if len(records) == 0 {
		return nil
	}
	prop := s.schemas.TextProperty(name)
	docs := make([]chromem.Document, 0, len(records))
	for i, r := range records {
		text := r.Properties[prop]
		if text == "" {
			return fmt.Errorf("record %d has no %q property", i, prop)
		}
		meta := make(map[string]string, len(r.Properties))
		for k, v := range r.Properties {
			meta[k] = v
		}
		docs = append(docs, chromem.Document{
			ID:       vectorstore.RecordID(name, text),
			Content:  text,
			Metadata: meta,
		})
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents to %s: %w", name, err)
	}
	s.logger.Debug("inserted records", zap.String("collection", name), zap.Int("count", len(docs)))
	return nil
}

// NearestText returns up to topK records ordered by descending cosine similarity.
func (s *Storage) NearestText(ctx context.Context, name, query string, topK int) ([]domain.ScoredMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	col := s.collection(name)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chromem query: embed %q: %w", query, err)
	}
	results, err := col.QueryEmbedding(ctx, vec, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	matches := make([]domain.ScoredMatch, 0, len(results))
	for _, r := range results {
		props := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			props[k] = v
		}
		matches = append(matches, domain.ScoredMatch{
			Record: domain.Record{Properties: props},
			Score:  float64(r.Similarity),
		})
	}
	return matches, nil
}
