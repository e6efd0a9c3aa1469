package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"adresse/internal/domain"
	"adresse/internal/metrics"
	"adresse/internal/parser"
	"adresse/internal/prompt"
)

// CommuneNormalizer maps the extracted commune onto the catalog.
type CommuneNormalizer interface {
	Normalize(ctx context.Context, result domain.ExtractionResult) (domain.ExtractionResult, error)
}

// Options carries the versioned prompt data and the ambient dependencies.
type Options struct {
	Vocabulary  []string
	Examples    []domain.Example
	Aliases     []domain.Alias
	Concurrency int
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// ExtractionService runs sentence -> prompt -> model -> parse -> normalize.
type ExtractionService struct {
	model       domain.ChatModel
	normalizer  CommuneNormalizer
	system      string
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewExtractionService renders the system prompt once; it is reused for every sentence.
func NewExtractionService(model domain.ChatModel, normalizer CommuneNormalizer, opts Options) *ExtractionService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ExtractionService{
		model:       model,
		normalizer:  normalizer,
		system:      prompt.Build(opts.Vocabulary, opts.Examples, opts.Aliases),
		concurrency: concurrency,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

func (s *ExtractionService) SystemPrompt() string { return s.system }

// Extract processes one sentence end to end. No partial result is returned on error.
func (s *ExtractionService) Extract(ctx context.Context, sentence string) (domain.ExtractionResult, error) {
	start := time.Now()
	res, err := s.extract(ctx, sentence)
	elapsed := time.Since(start)
	s.metrics.ObserveExtraction(Outcome(err), elapsed)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("sentence", sentence), zap.Duration("elapsed", elapsed), zap.Error(err))
		return domain.ExtractionResult{}, err
	}
	s.logger.Debug("extraction done",
		zap.String("voie", res.Voie),
		zap.String("commune", res.CommuneName()),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

func (s *ExtractionService) extract(ctx context.Context, sentence string) (domain.ExtractionResult, error) {
	if strings.TrimSpace(sentence) == "" {
		return domain.ExtractionResult{}, domain.ErrEmptyRequest
	}
	text, err := s.model.Chat(ctx, prompt.Messages(s.system, sentence))
	if err != nil {
		if errors.Is(err, domain.ErrModelUnavailable) || ctx.Err() != nil {
			return domain.ExtractionResult{}, err
		}
		return domain.ExtractionResult{}, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	parsed, err := parser.Parse(text)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return s.normalizer.Normalize(ctx, parsed)
}

// BatchItem is the outcome of one sentence of a batch.
type BatchItem struct {
	Sentence string
	Result   domain.ExtractionResult
	Err      error
}

// ExtractBatch runs the sentences with bounded concurrency. Items keep the
// input order and a failing sentence does not stop the others.
func (s *ExtractionService) ExtractBatch(ctx context.Context, sentences []string) []BatchItem {
	items := make([]BatchItem, len(sentences))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sentence := range sentences {
		items[i].Sentence = sentence
		g.Go(func() error {
			items[i].Result, items[i].Err = s.Extract(ctx, sentence)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Outcome classifies an extraction error for metrics and reporting.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrEmptyRequest):
		return metrics.OutcomeEmpty
	case errors.Is(err, domain.ErrParse):
		return metrics.OutcomeParse
	case errors.Is(err, domain.ErrNormalizationUnavailable):
		return metrics.OutcomeNormalization
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeModel
	}
}
