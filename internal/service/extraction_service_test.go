package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adresse/internal/catalog"
	"adresse/internal/domain"
	"adresse/internal/metrics"
	"adresse/internal/normalizer"
)

type scriptedModel struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	systems []string
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Chat(_ context.Context, messages []domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.systems = append(m.systems, messages[0].Content)
	return m.replies[messages[len(messages)-1].Content], nil
}

type fakeStore struct {
	mu      sync.Mutex
	names   map[string]string
	queries int
}

func (f *fakeStore) Exists(context.Context, string) (bool, error)              { return true, nil }
func (f *fakeStore) Create(context.Context, string, domain.Schema) error       { return nil }
func (f *fakeStore) InsertMany(context.Context, string, []domain.Record) error { return nil }
func (f *fakeStore) Delete(context.Context, string) error                     { return nil }

func (f *fakeStore) NearestText(_ context.Context, _ string, query string, _ int) ([]domain.ScoredMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	name, ok := f.names[query]
	if !ok {
		return nil, nil
	}
	return []domain.ScoredMatch{{
		Record: domain.Record{Properties: map[string]string{catalog.NameProperty: name}},
		Score:  0.92,
	}}, nil
}

const (
	curisSentence = "Je suis au 3 rue Alphone Allais à Curis"
	patelSentence = "J'habite rue Pr. Patel"
	proseSentence = "Bonjour"
)

func newService(t *testing.T, model *scriptedModel, store *fakeStore, m *metrics.Metrics) *ExtractionService {
	t.Helper()
	return NewExtractionService(model, normalizer.New(store, "Communes", m, nil), Options{
		Vocabulary:  []string{"Curis-au-Mont-d'Or", "Lyon"},
		Concurrency: 2,
		Metrics:     m,
	})
}

func fixtures() (*scriptedModel, *fakeStore) {
	model := &scriptedModel{replies: map[string]string{
		curisSentence: `{"fullText":"3 rue Alphone Allais à Curis","voie":"3 rue Alphone Allais","commune":"Curis"}`,
		patelSentence: `{"fullText":"rue Pr. Patel","voie":"rue Pr. Patel","commune":null}`,
		proseSentence: `Voici le JSON: {"fullText":"x","voie":"x","commune":null}`,
	}}
	store := &fakeStore{names: map[string]string{"Curis": "Curis-au-Mont-d'Or"}}
	return model, store
}

func TestExtractNormalizesCommune(t *testing.T) {
	model, store := fixtures()
	svc := newService(t, model, store, nil)

	res, err := svc.Extract(context.Background(), curisSentence)
	require.NoError(t, err)
	assert.Equal(t, "3 rue Alphone Allais à Curis", res.FullText)
	assert.Equal(t, "3 rue Alphone Allais", res.Voie)
	assert.Equal(t, "Curis-au-Mont-d'Or", res.CommuneName())
	require.Len(t, model.systems, 1)
	assert.Contains(t, model.systems[0], "Curis-au-Mont-d'Or / Lyon")
}

func TestExtractWithoutCommuneSkipsStore(t *testing.T) {
	model, store := fixtures()
	svc := newService(t, model, store, nil)

	res, err := svc.Extract(context.Background(), patelSentence)
	require.NoError(t, err)
	assert.Nil(t, res.Commune)
	assert.Equal(t, 0, store.queries)
}

func TestExtractErrors(t *testing.T) {
	model, store := fixtures()
	svc := newService(t, model, store, nil)
	ctx := context.Background()

	_, err := svc.Extract(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyRequest)

	_, err = svc.Extract(ctx, proseSentence)
	var perr *domain.ParseError
	require.ErrorAs(t, err, &perr)
	assert.True(t, strings.HasPrefix(perr.Raw, "Voici le JSON"))

	model.err = errors.New("dial tcp: connection refused")
	_, err = svc.Extract(ctx, curisSentence)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestExtractEmptyCompletionIsParseError(t *testing.T) {
	model, store := fixtures()
	svc := newService(t, model, store, nil)

	_, err := svc.Extract(context.Background(), "Une phrase sans réponse")
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.NotErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestExtractUnknownCommuneFailsNormalization(t *testing.T) {
	model, store := fixtures()
	model.replies["Rue de Paris à Paris"] = `{"fullText":"Rue de Paris à Paris","voie":"Rue de Paris","commune":"Paris"}`
	svc := newService(t, model, store, nil)

	res, err := svc.Extract(context.Background(), "Rue de Paris à Paris")
	assert.ErrorIs(t, err, domain.ErrNormalizationUnavailable)
	assert.Equal(t, domain.ExtractionResult{}, res)
}

func TestSystemPromptIsBuiltOnce(t *testing.T) {
	model, store := fixtures()
	svc := newService(t, model, store, nil)
	ctx := context.Background()

	_, _ = svc.Extract(ctx, curisSentence)
	_, _ = svc.Extract(ctx, patelSentence)
	require.Len(t, model.systems, 2)
	assert.Equal(t, model.systems[0], model.systems[1])
	assert.Equal(t, svc.SystemPrompt(), model.systems[0])
}

func TestExtractBatchKeepsOrderAndErrors(t *testing.T) {
	model, store := fixtures()
	m := metrics.New(prometheus.NewRegistry())
	svc := newService(t, model, store, m)

	items := svc.ExtractBatch(context.Background(), []string{curisSentence, proseSentence, patelSentence, ""})
	require.Len(t, items, 4)

	assert.Equal(t, curisSentence, items[0].Sentence)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, "Curis-au-Mont-d'Or", items[0].Result.CommuneName())
	assert.ErrorIs(t, items[1].Err, domain.ErrParse)
	assert.NoError(t, items[2].Err)
	assert.Equal(t, "rue Pr. Patel", items[2].Result.Voie)
	assert.ErrorIs(t, items[3].Err, domain.ErrEmptyRequest)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues(metrics.OutcomeParse)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues(metrics.OutcomeEmpty)))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeOK, Outcome(nil))
	assert.Equal(t, metrics.OutcomeModel, Outcome(domain.ErrModelUnavailable))
	assert.Equal(t, metrics.OutcomeCanceled, Outcome(context.Canceled))
	assert.Equal(t, metrics.OutcomeNormalization, Outcome(domain.ErrNormalizationUnavailable))
}
