package driver

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ardnew/softrng/pkg"
)

const metricsNamespace = "rng"

// Metrics holds the driver's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	attached       prometheus.Gauge
	attaches       prometheus.Counter
	attachFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Control requests by command and result status.",
		}, []string{"command", "status"}),
		attached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "attached",
			Help:      "Whether a device is attached (1) or not (0).",
		}),
		attaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attaches_total",
			Help:      "Successful device attaches.",
		}),
		attachFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attach_failures_total",
			Help:      "Failed device attaches by failing step.",
		}, []string{"step"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.attached, m.attaches, m.attachFailures)
	}
	return m
}

func (m *Metrics) observeRequest(k Kind, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(k.String(), pkg.StatusOf(err).String()).Inc()
}

func (m *Metrics) setAttached(on bool) {
	if m == nil {
		return
	}
	if on {
		m.attaches.Inc()
		m.attached.Set(1)
	} else {
		m.attached.Set(0)
	}
}

func (m *Metrics) attachFailed(s AttachStep) {
	if m == nil {
		return
	}
	m.attachFailures.WithLabelValues(s.String()).Inc()
}
