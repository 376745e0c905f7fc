package occ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Commit outcomes, the values of the "outcome" label.
const (
	outcomeCommitted = "committed"
	outcomeReadOnly  = "read_only"
	outcomeConflict  = "conflict"
	outcomeError     = "error"
)

// metrics are registered per Store so independent stores do not collide.
type metrics struct {
	commits            *prometheus.CounterVec
	validationDuration prometheus.Histogram
	openTransactions   prometheus.Gauge
	retainedDeltas     prometheus.Gauge
	watchNotifications *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "occgraph_commits_total",
			Help: "Commit attempts by outcome",
		}, []string{"outcome"}),

		validationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "occgraph_validation_duration_seconds",
			Help:    "Time spent validating read logs at commit",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.25},
		}),

		openTransactions: f.NewGauge(prometheus.GaugeOpts{
			Name: "occgraph_open_transactions",
			Help: "Transactions begun and not yet finished",
		}),

		retainedDeltas: f.NewGauge(prometheus.GaugeOpts{
			Name: "occgraph_retained_deltas",
			Help: "Deltas held for validating open snapshots",
		}),

		watchNotifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "occgraph_watch_notifications_total",
			Help: "Commits that changed a watched query, by watch name",
		}, []string{"watch"}),
	}
}
