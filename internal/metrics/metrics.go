// Package metrics prometheus-метрики движка, отдаются на /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grail_refresh_total",
			Help: "Remote snapshot fetches by category",
		},
		[]string{"category"},
	)

	// result: ok | rejected | error
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grail_mutations_total",
			Help: "Order create/cancel calls",
		},
		[]string{"op", "side", "result"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grail_transitions_total",
			Help: "Strategy state transitions",
		},
		[]string{"from", "to"},
	)

	// result: ok | retry | fatal
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grail_cycles_total",
			Help: "Driver cycles by outcome",
		},
		[]string{"result"},
	)

	CycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grail_cycle_seconds",
			Help:    "Duration of one transition+output cycle",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grail_active_sessions",
			Help: "Instruments currently driven",
		},
	)
)

func init() {
	prometheus.MustRegister(Refreshes, Mutations, Transitions, Cycles, CycleSeconds, ActiveSessions)
}
