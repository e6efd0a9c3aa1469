package embedding

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const numberWeight = 3

// TFIDFEmbedder is a TF-IDF vectorizer over word tokens and character trigrams.
// Accents, ordinal suffixes ("6e", "1er") and common abbreviations are folded,
// so "Venissieux" and "Vénissieux" land on the same features.
type TFIDFEmbedder struct {
	mu           sync.RWMutex
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	tokenPattern *regexp.Regexp
	ordinal      *regexp.Regexp
	stopwords    map[string]struct{}
	expansions   map[string]string
}

func NewTFIDFEmbedder() *TFIDFEmbedder {
	return &TFIDFEmbedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+`),
		ordinal:      regexp.MustCompile(`\b(\d+)\s*(?:ere|er|re|eme|em|e)\b`),
		stopwords:    defaultStopwords(),
		expansions: map[string]string{
			"arr": "arrondissement",
			"st":  "saint",
			"ste": "sainte",
		},
	}
}

func (e *TFIDFEmbedder) Name() string { return "local" }

// Prepare builds the vocabulary and IDF weights from the corpus.
func (e *TFIDFEmbedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, f := range e.features(text) {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			df[f]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no features found in corpus")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

func (e *TFIDFEmbedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// Embed returns an L2-normalized vector for text. A text sharing no feature
// with the vocabulary gets the uniform vector, so a nearest-neighbor query
// still ranks every catalog entry.
func (e *TFIDFEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	tf := make(map[int]int)
	total := 0
	for _, f := range e.features(text) {
		if idx, ok := e.vocabulary[f]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return e.uniform(), nil
	}
	vec := make([]float64, e.dimension)
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	length := 0.0
	for _, v := range vec {
		length += v * v
	}
	length = math.Sqrt(length)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v / length)
	}
	return out, nil
}

func (e *TFIDFEmbedder) uniform() []float32 {
	out := make([]float32, e.dimension)
	v := float32(1 / math.Sqrt(float64(e.dimension)))
	for i := range out {
		out[i] = v
	}
	return out
}

// features returns word features ("w:") and padded trigram features ("g:").
func (e *TFIDFEmbedder) features(text string) []string {
	s := e.ordinal.ReplaceAllString(strings.ToLower(foldAccents(text)), "$1")
	words := e.tokenPattern.FindAllString(s, -1)
	out := make([]string, 0, len(words)*4)
	for _, w := range words {
		if full, ok := e.expansions[w]; ok {
			w = full
		}
		if _, stop := e.stopwords[w]; !stop {
			// Arrondissement numbers carry most of the signal in "Lyon 6".
			n := 1
			if isNumber(w) {
				n = numberWeight
			}
			for i := 0; i < n; i++ {
				out = append(out, "w:"+w)
			}
		}
		padded := []rune(" " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out = append(out, "g:"+string(padded[i:i+3]))
		}
	}
	return out
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return w != ""
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "au", "aux", "d", "de", "des", "du", "en", "et", "l", "la", "le", "les", "sur", "sous",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
