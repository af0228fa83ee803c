package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the onboarding Prometheus collectors.
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	Transitions      *prometheus.CounterVec
	Completions      *prometheus.CounterVec
	FallbackAttempts *prometheus.CounterVec
	DegradedPending  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_transitions_total",
			Help: "Step transitions attempted, by step and result",
		}, []string{"step", "result"}),
		Completions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_completions_total",
			Help: "Completion outcomes, by outcome and write tier",
		}, []string{"outcome", "tier"}),
		FallbackAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_fallback_attempts_total",
			Help: "Fallback write tiers attempted after a primary failure",
		}, []string{"tier"}),
		DegradedPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_degraded_pending",
			Help: "Degraded records waiting for reconciliation",
		}),
	}
}

func (m *Metrics) ObserveTransition(step, result string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(step, result).Inc()
}

func (m *Metrics) ObserveCompletion(outcome, tier string) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(outcome, tier).Inc()
}

func (m *Metrics) ObserveFallback(tier string) {
	if m == nil {
		return
	}
	m.FallbackAttempts.WithLabelValues(tier).Inc()
}

func (m *Metrics) SetDegradedPending(n int) {
	if m == nil {
		return
	}
	m.DegradedPending.Set(float64(n))
}
