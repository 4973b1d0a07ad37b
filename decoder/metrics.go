package decoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the decoder's prometheus collectors. Several decoders may
// share one Metrics.
type Metrics struct {
	utterances prometheus.Counter
	frames     prometheus.Counter
	endpoints  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	finalize   prometheus.Histogram
}

// NewMetrics registers the decoder collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		utterances: f.NewCounter(prometheus.CounterOpts{
			Name: "sphinx_utterances_total",
			Help: "Utterances finished",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "sphinx_frames_total",
			Help: "Feature frames searched",
		}),
		endpoints: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sphinx_endpoint_events_total",
			Help: "Endpointer events",
		}, []string{"kind"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sphinx_errors_total",
			Help: "Decoder errors by kind",
		}, []string{"kind"}),
		finalize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sphinx_finalize_seconds",
			Help:    "Time spent ending an utterance",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

func (m *Metrics) utterance() {
	if m != nil {
		m.utterances.Inc()
	}
}

func (m *Metrics) searched(n int) {
	if m != nil && n > 0 {
		m.frames.Add(float64(n))
	}
}

func (m *Metrics) endpoint(kind string) {
	if m != nil {
		m.endpoints.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) failure(kind string) {
	if m != nil {
		m.errors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) finalized(seconds float64) {
	if m != nil {
		m.finalize.Observe(seconds)
	}
}
