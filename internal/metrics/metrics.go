// Package metrics provides Prometheus instrumentation for the auto-moderation
// service: counters for check outcomes, per-detector violations, and
// recommended actions, plus a histogram for decision latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksTotal counts moderation checks by outcome: "clean", "flagged",
	// or "whitelisted".
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_checks_total",
		Help: "Total number of moderation checks by outcome",
	}, []string{"outcome"})

	// ViolationsTotal counts violations by the detector that raised them:
	// "filter", "toxicity", or "spam".
	ViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_violations_total",
		Help: "Total number of violations by detector",
	}, []string{"detector"})

	// ActionsTotal counts recommended enforcement actions by type.
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_actions_total",
		Help: "Total number of recommended enforcement actions",
	}, []string{"action"})

	// DecisionLatency records end-to-end moderation decision latency in
	// seconds, including any external classifier calls.
	DecisionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "automod_decision_latency_seconds",
		Help:    "Moderation decision latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	// StreamClients tracks the number of connected violation-stream clients.
	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "automod_stream_clients",
		Help: "Current number of connected violation stream clients",
	})
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		ViolationsTotal,
		ActionsTotal,
		DecisionLatency,
		StreamClients,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
