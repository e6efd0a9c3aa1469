package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adresse/internal/domain"
	"adresse/internal/metrics"
	"adresse/internal/service"
)

type fakePipeline struct {
	results map[string]domain.ExtractionResult
	errs    map[string]error
}

func (f *fakePipeline) Extract(_ context.Context, sentence string) (domain.ExtractionResult, error) {
	if err, ok := f.errs[sentence]; ok {
		return domain.ExtractionResult{}, err
	}
	return f.results[sentence], nil
}

func (f *fakePipeline) ExtractBatch(ctx context.Context, sentences []string) []service.BatchItem {
	items := make([]service.BatchItem, len(sentences))
	for i, s := range sentences {
		items[i].Sentence = s
		items[i].Result, items[i].Err = f.Extract(ctx, s)
	}
	return items
}

func strPtr(s string) *string { return &s }

func newTestServer(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	p := &fakePipeline{
		results: map[string]domain.ExtractionResult{
			"Curis": {FullText: "rue Alphone Allais à Curis", Voie: "rue Alphone Allais", Commune: strPtr("Curis-au-Mont-d'Or")},
			"Patel": {FullText: "rue Pr. Patel", Voie: "rue Pr. Patel"},
		},
		errs: map[string]error{
			"":      domain.ErrEmptyRequest,
			"prose": &domain.ParseError{Reason: "not a JSON object", Raw: "Voici"},
			"down":  domain.ErrModelUnavailable,
			"paris": domain.ErrNormalizationUnavailable,
		},
	}
	return New(p, opts).Router()
}

func post(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExtractOK(t *testing.T) {
	r := newTestServer(Options{})

	w := post(t, r, "/v1/extract", `{"sentence":"Curis"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res domain.ExtractionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Curis-au-Mont-d'Or", res.CommuneName())

	w = post(t, r, "/v1/extract", `{"sentence":"Patel"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fullText":"rue Pr. Patel","voie":"rue Pr. Patel","commune":null}`, w.Body.String())
}

func TestExtractErrorStatuses(t *testing.T) {
	r := newTestServer(Options{})
	tests := []struct {
		sentence string
		status   int
		code     string
	}{
		{"", http.StatusBadRequest, metrics.OutcomeEmpty},
		{"prose", http.StatusUnprocessableEntity, metrics.OutcomeParse},
		{"down", http.StatusBadGateway, metrics.OutcomeModel},
		{"paris", http.StatusServiceUnavailable, metrics.OutcomeNormalization},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"sentence": tt.sentence})
			w := post(t, r, "/v1/extract", string(body))
			assert.Equal(t, tt.status, w.Code)
			var resp struct {
				Error errorBody `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestExtractMalformedBody(t *testing.T) {
	r := newTestServer(Options{})
	w := post(t, r, "/v1/extract", `{"sentence":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractBatch(t *testing.T) {
	r := newTestServer(Options{})

	w := post(t, r, "/v1/extract/batch", `{"sentences":["Curis","prose","Patel"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Results []batchItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "Curis-au-Mont-d'Or", resp.Results[0].Result.CommuneName())
	require.NotNil(t, resp.Results[1].Error)
	assert.Equal(t, metrics.OutcomeParse, resp.Results[1].Error.Code)
	assert.Nil(t, resp.Results[1].Result)
	assert.Equal(t, "rue Pr. Patel", resp.Results[2].Result.Voie)
}

func TestExtractBatchTooLarge(t *testing.T) {
	r := newTestServer(Options{MaxBatch: 1})
	w := post(t, r, "/v1/extract/batch", `{"sentences":["Curis","Patel"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	healthy := newTestServer(Options{Health: func(context.Context) error { return nil }})
	w := httptest.NewRecorder()
	healthy.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestServer(Options{Health: func(context.Context) error { return errors.New("ollama not reachable") }})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "ollama not reachable")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveExtraction(metrics.OutcomeOK, 0)
	r := newTestServer(Options{Gatherer: reg})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", bytes.NewReader(nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `adresse_extractions_total{outcome="ok"} 1`)
}
