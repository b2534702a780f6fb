package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical endpoint name rather than
// the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// answerRequestsTotal counts completed /api/answer requests, partitioned
	// by outcome: "ok", "timeout", "error", or "canceled".
	answerRequestsTotal *prometheus.CounterVec

	// answerDurationSeconds records the wall-clock duration of each
	// /api/answer request from receipt to completion.
	answerDurationSeconds *prometheus.HistogramVec

	// answerActiveStreams is the number of /api/answer SSE streams currently open.
	answerActiveStreams prometheus.Gauge

	// toolDecisionsTotal counts classification outcomes by tool.
	toolDecisionsTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		answerRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localmind",
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Total number of /api/answer requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		answerDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "localmind",
			Subsystem: "answer",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/answer requests from receipt to completion.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		answerActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "localmind",
			Subsystem: "answer",
			Name:      "active_streams",
			Help:      "Number of /api/answer SSE streams currently open.",
		}),

		toolDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localmind",
			Subsystem: "answer",
			Name:      "tool_decisions_total",
			Help:      "Classification outcomes, partitioned by tool.",
		}, []string{"tool"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localmind",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "localmind",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// NewCacheCounters registers hit/miss counters for a named cache against reg.
// The serve command wires these into the embedding cache so cache efficiency
// shows up beside the server metrics.
func NewCacheCounters(reg prometheus.Registerer, cacheName string) (hits, misses prometheus.Counter) {
	factory := promauto.With(reg)
	hits = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   "localmind",
		Subsystem:   "cache",
		Name:        "hits_total",
		Help:        "Cache hits, partitioned by cache.",
		ConstLabels: prometheus.Labels{"cache": cacheName},
	})
	misses = factory.NewCounter(prometheus.CounterOpts{
		Namespace:   "localmind",
		Subsystem:   "cache",
		Name:        "misses_total",
		Help:        "Cache misses, partitioned by cache.",
		ConstLabels: prometheus.Labels{"cache": cacheName},
	})
	return hits, misses
}
