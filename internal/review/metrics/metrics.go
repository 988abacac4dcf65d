package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the manual review queue.
type Metrics struct {
	Enqueued *prometheus.CounterVec
	Resolved *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_review_items_enqueued_total",
			Help: "Escalated decisions placed on the manual review queue",
		}, []string{"action"}),
		Resolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_review_items_resolved_total",
			Help: "Manual review resolutions by action and outcome",
		}, []string{"action", "outcome"}),
	}
}

func (m *Metrics) IncrementEnqueued(action string) {
	if m == nil {
		return
	}
	m.Enqueued.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementResolved(action, outcome string) {
	if m == nil {
		return
	}
	m.Resolved.WithLabelValues(action, outcome).Inc()
}
