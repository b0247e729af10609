package actions

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for action invocations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers action metrics on the given registry.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "e2bbox",
			Name:      "actions_total",
			Help:      "Action invocations by action name and outcome.",
		}, []string{"action", "outcome"}),

		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "e2bbox",
			Name:      "action_duration_seconds",
			Help:      "Action duration in seconds, remote calls included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"action"}),
	}

	reg.MustRegister(m.ActionsTotal, m.ActionDuration)

	return m
}

func (m *Metrics) observe(action string, outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(action, string(outcome)).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}
