package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rushorts"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors for remote calls and fallbacks.
type Metrics struct {
	ChatRequests          *prometheus.CounterVec
	TranscriptionRequests *prometheus.CounterVec
	RequestDuration       *prometheus.HistogramVec

	HighlightFallbacks   prometheus.Counter
	TranslationFallbacks prometheus.Counter
	HighlightsSelected   prometheus.Counter

	VideosProcessed *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg. A nil reg gets a fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		ChatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat completion requests by outcome",
		}, []string{"outcome"}),
		TranscriptionRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_requests_total",
			Help:      "Speech transcription requests by outcome",
		}, []string{"outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Duration of remote AI API requests",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"endpoint"}),
		HighlightFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "highlight_fallbacks_total",
			Help:      "Transcript windows that fell back to heuristic highlight scoring",
		}),
		TranslationFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_fallbacks_total",
			Help:      "Translation batches that fell back to the original text",
		}),
		HighlightsSelected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "highlights_selected_total",
			Help:      "Highlights selected by the analyzer",
		}),
		VideosProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "videos_processed_total",
			Help:      "Videos processed by outcome",
		}, []string{"outcome"}),
		gatherer: reg,
	}
}

// ObserveRequest records one remote call on the given counter.
func (m *Metrics) ObserveRequest(counter *prometheus.CounterVec, endpoint string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	counter.WithLabelValues(outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
