package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means the completion endpoint could not be reached or timed out.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNormalizationUnavailable means the commune lookup returned nothing or failed.
	ErrNormalizationUnavailable = errors.New("normalization unavailable")
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("parse error")
	// ErrEmptyRequest is returned for blank input sentences.
	ErrEmptyRequest = errors.New("empty extraction request")
)

// ParseError reports a completion that is not a well-formed extraction object.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
