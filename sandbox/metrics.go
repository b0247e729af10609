package sandbox

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the session registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SessionsActive prometheus.Gauge
	RemoteCalls    *prometheus.CounterVec
	Evictions      prometheus.Counter
}

// NewMetrics creates and registers registry metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "e2bbox",
			Name:      "sessions_active",
			Help:      "Owners currently holding a live sandbox in this process.",
		}),
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "e2bbox",
			Name:      "remote_calls_total",
			Help:      "Calls made by the registry to the remote sandbox service.",
		}, []string{"op", "status"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "e2bbox",
			Name:      "sessions_evicted_total",
			Help:      "Sessions closed by the idle evictor.",
		}),
	}

	reg.MustRegister(m.SessionsActive, m.RemoteCalls, m.Evictions)

	return m
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

func (m *Metrics) remoteCall(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RemoteCalls.WithLabelValues(op, status).Inc()
}

func (m *Metrics) evicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evictions.Add(float64(n))
}
