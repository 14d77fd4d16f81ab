package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the backend's Prometheus collectors.
type Metrics struct {
	Regenerations      *prometheus.CounterVec
	StreamDuration     prometheus.Histogram
	PlacementFallbacks prometheus.Counter
	UndoDepth          prometheus.Gauge
	WSConnections      prometheus.Gauge
}

// NewMetrics registers the collectors on the given registerer (pass
// prometheus.DefaultRegisterer in production, a fresh registry in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Regenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tangent",
			Subsystem: "cascade",
			Name:      "regenerations_total",
			Help:      "Response regenerations by outcome.",
		}, []string{"outcome"}),
		StreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tangent",
			Subsystem: "llm",
			Name:      "stream_duration_seconds",
			Help:      "Wall time of streaming chat calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		PlacementFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tangent",
			Subsystem: "layout",
			Name:      "placement_fallbacks_total",
			Help:      "Free-position searches that exhausted their rings and accepted an overlap.",
		}),
		UndoDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tangent",
			Subsystem: "history",
			Name:      "undo_depth",
			Help:      "Snapshots currently available to undo.",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tangent",
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Connected view-layer websocket clients.",
		}),
	}
}
