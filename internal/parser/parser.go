// Package parser validates raw model completions into extraction results.
//
// Parsing is strict: the whole completion must be one JSON object. Prose around
// the object, markdown fences or trailing data are rejected rather than repaired.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"adresse/internal/domain"
)

// Parse decodes a completion into an ExtractionResult.
// fullText and voie must be strings; commune may be absent, null or a string.
func Parse(text string) (domain.ExtractionResult, error) {
	var zero domain.ExtractionResult

	fields, err := decodeObject(text)
	if err != nil {
		return zero, &domain.ParseError{Reason: "invalid JSON", Raw: text, Err: err}
	}

	fullText, err := requiredString(fields, "fullText")
	if err != nil {
		return zero, &domain.ParseError{Reason: err.Error(), Raw: text}
	}
	voie, err := requiredString(fields, "voie")
	if err != nil {
		return zero, &domain.ParseError{Reason: err.Error(), Raw: text}
	}
	commune, err := optionalString(fields, "commune")
	if err != nil {
		return zero, &domain.ParseError{Reason: err.Error(), Raw: text}
	}

	return domain.ExtractionResult{FullText: fullText, Voie: voie, Commune: commune}, nil
}

func decodeObject(text string) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("top-level value is not an object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return fields, nil
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing required key %q", key)
	}
	if isNull(raw) {
		return "", fmt.Errorf("key %q must not be null", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("key %q must be a string", key)
	}
	return s, nil
}

func optionalString(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("key %q must be a string or null", key)
	}
	return &s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
