package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgate_calls_total",
			Help: "Gateway calls by task and terminal outcome.",
		},
		[]string{"task", "outcome"},
	)
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgate_attempts_total",
			Help: "Provider attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmgate_call_duration_seconds",
			Help:    "End-to-end gateway call duration, all attempts included.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"task"},
	)
	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgate_tokens_total",
			Help: "Tokens consumed by provider and direction.",
		},
		[]string{"provider", "direction"},
	)
)

func init() {
	prometheus.MustRegister(callsTotal, attemptsTotal, callDuration, tokensTotal)
}
