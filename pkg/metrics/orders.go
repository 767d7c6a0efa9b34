package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transition outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
)

// OrderMetrics tracks checkout and order status transitions.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	created     prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transition attempts by target, actor role and outcome.",
		}, []string{"to", "role", "outcome"}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders created at checkout.",
		}),
	}
	reg.MustRegister(m.transitions, m.created)
	return m
}

// ObserveTransition counts one transition attempt.
func (m *OrderMetrics) ObserveTransition(to, role, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to), normalizeLabel(role), outcome).Inc()
}

// AddCreated counts orders produced by one checkout.
func (m *OrderMetrics) AddCreated(n int) {
	if m == nil || m.created == nil || n <= 0 {
		return
	}
	m.created.Add(float64(n))
}
