// Package vectorstore holds what the similarity store backends share.
package vectorstore

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"adresse/internal/domain"
)

// DefaultTextProperty is the vectorized attribute when a schema names none.
const DefaultTextProperty = "name"

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
)

var recordNamespace = uuid.MustParse("6f1f7a52-4b0e-4c55-9a36-2f3c8f0f5e11")

// RecordID derives a stable identifier from the collection and the record text,
// so re-inserting the same entry overwrites it instead of duplicating it.
func RecordID(collection, text string) string {
	return uuid.NewSHA1(recordNamespace, []byte(collection+"\x00"+text)).String()
}

// Schemas remembers the text property of each collection created in this process.
type Schemas struct {
	m sync.Map
}

func (s *Schemas) Store(collection string, schema domain.Schema) {
	s.m.Store(collection, schema)
}

func (s *Schemas) Delete(collection string) {
	s.m.Delete(collection)
}

// TextProperty returns the vectorized attribute of a collection.
func (s *Schemas) TextProperty(collection string) string {
	if v, ok := s.m.Load(collection); ok {
		if p := v.(domain.Schema).TextProperty; p != "" {
			return p
		}
	}
	return DefaultTextProperty
}
