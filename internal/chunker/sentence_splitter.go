// Package chunker splits free text into the sentences sent for extraction.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SentenceSplitter cuts text on sentence punctuation. Street-name
// abbreviations such as "Pr." or "Bd." do not end a sentence.
type SentenceSplitter struct {
	splitter      *regexp.Regexp
	abbreviations map[string]struct{}
}

func NewSentenceSplitter() *SentenceSplitter {
	abbrevs := []string{
		"av", "bd", "bld", "ch", "dr", "fbg", "imp", "m", "me", "mlle", "mme",
		"pl", "pr", "qu", "r", "rte", "sq", "st", "ste",
	}
	m := make(map[string]struct{}, len(abbrevs))
	for _, a := range abbrevs {
		m[a] = struct{}{}
	}
	return &SentenceSplitter{
		splitter:      regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		abbreviations: m,
	}
}

// Split returns the trimmed, non-empty sentences of text in order.
// Trailing text without final punctuation is kept as a last sentence.
func (s *SentenceSplitter) Split(text string) []string {
	var (
		out     []string
		pending strings.Builder
		last    int
	)
	flush := func() {
		if sent := strings.TrimSpace(pending.String()); sent != "" {
			out = append(out, sent)
		}
		pending.Reset()
	}
	for _, loc := range s.splitter.FindAllStringIndex(text, -1) {
		pending.WriteString(text[last:loc[1]])
		last = loc[1]
		if s.endsWithAbbreviation(pending.String()) {
			continue
		}
		flush()
	}
	pending.WriteString(text[last:])
	flush()
	return out
}

func (s *SentenceSplitter) endsWithAbbreviation(piece string) bool {
	piece = strings.TrimSpace(piece)
	if !strings.HasSuffix(piece, ".") {
		return false
	}
	body := strings.TrimSuffix(piece, ".")
	word := body[strings.LastIndexFunc(body, func(r rune) bool { return !unicode.IsLetter(r) })+1:]
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		return true
	}
	_, ok := s.abbreviations[strings.ToLower(word)]
	return ok
}

// Lines returns one sentence per non-blank line.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			out = append(out, l)
		}
	}
	return out
}
