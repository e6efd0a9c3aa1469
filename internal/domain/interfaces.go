package domain

import "context"

// ExtractionResult is the structured address found in a sentence.
// Commune is nil when the sentence names no commune.
type ExtractionResult struct {
	FullText string  `json:"fullText" yaml:"fullText"`
	Voie     string  `json:"voie" yaml:"voie"`
	Commune  *string `json:"commune" yaml:"commune"`
}

// CommuneName returns the commune or an empty string when absent.
func (r ExtractionResult) CommuneName() string {
	if r.Commune == nil {
		return ""
	}
	return *r.Commune
}

// WithCommune returns a copy of r whose commune is set to name.
func (r ExtractionResult) WithCommune(name string) ExtractionResult {
	r.Commune = &name
	return r
}

// Example is a worked input/output pair shown to the model.
type Example struct {
	Input  string           `yaml:"input"`
	Output ExtractionResult `yaml:"output"`
}

// Alias maps a colloquial commune form onto its canonical catalog entry.
type Alias struct {
	Raw       string `yaml:"raw"`
	Canonical string `yaml:"canonical"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn sent to a chat model.
type Message struct {
	Role    Role
	Content string
}

// Record is one object stored in a similarity store collection.
type Record struct {
	Properties map[string]string
}

// ScoredMatch is a record returned by a nearest-neighbor query with its similarity.
type ScoredMatch struct {
	Record Record
	Score  float64
}

// Schema describes a collection: a single text attribute is vectorized.
type Schema struct {
	Description  string
	TextProperty string
}

// ChatModel returns the text of the best completion for a conversation.
type ChatModel interface {
	Name() string
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CatalogStore is the collection-oriented similarity store holding the catalog.
type CatalogStore interface {
	Exists(ctx context.Context, collection string) (bool, error)
	Create(ctx context.Context, collection string, schema Schema) error
	InsertMany(ctx context.Context, collection string, records []Record) error
	Delete(ctx context.Context, collection string) error
	NearestText(ctx context.Context, collection string, query string, topK int) ([]ScoredMatch, error)
}

// Extractor runs the full pipeline for one sentence.
type Extractor interface {
	Extract(ctx context.Context, sentence string) (ExtractionResult, error)
}
