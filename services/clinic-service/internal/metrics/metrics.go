// Package metrics holds the clinic service's domain counters. A nil *Metrics is
// valid and records nothing, which keeps use cases usable in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oralflow"

type Metrics struct {
	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	bulk        *prometheus.CounterVec
	bulkRows    *prometheus.CounterVec
	swept       *prometheus.CounterVec
	published   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "citas",
			Name:      "transitions_total",
			Help:      "Appointment state changes by operation and resulting state.",
		}, []string{"operation", "estado"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "citas",
			Name:      "rejections_total",
			Help:      "Rejected appointment writes by error kind.",
		}, []string{"operation", "kind"}),
		bulk: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "operations_total",
			Help:      "Applied bulk transitions by scope and action.",
		}, []string{"scope", "action"}),
		bulkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "appointments_total",
			Help:      "Appointments moved by bulk transitions.",
		}, []string{"scope", "action"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "appointments_total",
			Help:      "Appointments processed by periodic sweeps.",
		}, []string{"sweep"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events written to Kafka.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.conflicts, m.bulk, m.bulkRows, m.swept, m.published)
	return m
}

func (m *Metrics) Transition(operation, state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation, state).Inc()
}

func (m *Metrics) Rejected(operation, kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) Bulk(scope, action string, rows int) {
	if m == nil {
		return
	}
	m.bulk.WithLabelValues(scope, action).Inc()
	m.bulkRows.WithLabelValues(scope, action).Add(float64(rows))
}

func (m *Metrics) Swept(sweep string, rows int) {
	if m == nil {
		return
	}
	m.swept.WithLabelValues(sweep).Add(float64(rows))
}

func (m *Metrics) Published(n int) {
	if m == nil {
		return
	}
	m.published.Add(float64(n))
}
