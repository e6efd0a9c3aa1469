// Package metrics exposes Prometheus instrumentation for the extraction pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extraction outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeEmpty         = "empty"
	OutcomeModel         = "model_unavailable"
	OutcomeParse         = "parse_error"
	OutcomeNormalization = "normalization_unavailable"
	OutcomeCanceled      = "canceled"
)

// Normalization results.
const (
	NormalizationPassthrough = "passthrough"
	NormalizationCorrected   = "corrected"
	NormalizationUnchanged   = "unchanged"
	NormalizationFailed      = "failed"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
//
// Metrics:
//   - adresse_extractions_total{outcome}
//   - adresse_extraction_duration_seconds
//   - adresse_normalizations_total{result}
type Metrics struct {
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	NormalizationTotal *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adresse_extractions_total",
				Help: "Total number of extraction requests by outcome",
			},
			[]string{"outcome"},
		),
		ExtractionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adresse_extraction_duration_seconds",
				Help:    "End-to-end extraction latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		NormalizationTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adresse_normalizations_total",
				Help: "Total number of commune normalizations by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveExtraction(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(outcome).Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveNormalization(result string) {
	if m == nil {
		return
	}
	m.NormalizationTotal.WithLabelValues(result).Inc()
}
