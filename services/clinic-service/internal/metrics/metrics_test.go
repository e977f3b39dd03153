package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Transition("create", "pendiente")
	m.Transition("create", "pendiente")
	m.Bulk("odontologo", "mantenimiento", 3)
	m.Swept("autocancel", 2)
	m.Published(4)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("create", "pendiente")); got != 2 {
		t.Fatalf("transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.bulkRows.WithLabelValues("odontologo", "mantenimiento")); got != 3 {
		t.Fatalf("bulk rows = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.swept.WithLabelValues("autocancel")); got != 2 {
		t.Fatalf("swept = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.published); got != 4 {
		t.Fatalf("published = %v, want 4", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transition("create", "pendiente")
	m.Rejected("create", "conflict")
	m.Bulk("consultorio", "reactivar", 1)
	m.Swept("reminders", 1)
	m.Published(1)
}
