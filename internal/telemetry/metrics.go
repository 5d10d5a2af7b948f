// Package telemetry exposes prometheus counters for the indexing and query
// pipelines. A nil *Metrics is valid and records nothing, so unit tests and
// library callers can skip registration.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	uploadsTotal   prometheus.Counter
	uploadBytes    prometheus.Counter
	chunksIndexed  prometheus.Counter
	sessionsClosed prometheus.Counter
	buildsTotal    *prometheus.CounterVec
	buildSeconds   prometheus.Histogram
	queriesTotal   *prometheus.CounterVec
	querySeconds   prometheus.Histogram
}

// New registers the docchat metric family on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		uploadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "docchat_uploaded_files_total",
			Help: "Files accepted for indexing.",
		}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "docchat_uploaded_bytes_total",
			Help: "Bytes accepted for indexing.",
		}),
		chunksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docchat_chunks_indexed_total",
			Help: "Chunks committed to session indexes.",
		}),
		sessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docchat_sessions_closed_total",
			Help: "Sessions torn down explicitly or by TTL sweep.",
		}),
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docchat_index_builds_total",
			Help: "Finished indexing builds by outcome.",
		}, []string{"outcome"}),
		buildSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docchat_index_build_seconds",
			Help:    "Wall time of one indexing batch.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docchat_queries_total",
			Help: "Hybrid queries by outcome.",
		}, []string{"outcome"}),
		querySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docchat_query_seconds",
			Help:    "Hybrid query latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
}

func (m *Metrics) UploadAccepted(files int, bytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.Add(float64(files))
	m.uploadBytes.Add(float64(bytes))
}

func (m *Metrics) ChunkIndexed() {
	if m == nil {
		return
	}
	m.chunksIndexed.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsClosed.Inc()
}

func (m *Metrics) BuildFinished(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.buildsTotal.WithLabelValues(outcome).Inc()
	m.buildSeconds.Observe(d.Seconds())
}

func (m *Metrics) QueryServed(d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.querySeconds.Observe(d.Seconds())
}
