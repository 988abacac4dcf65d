package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks marketplace entities as they pass compliance.
type Metrics struct {
	Entities  *prometheus.CounterVec
	Denied    *prometheus.CounterVec
	Transfers *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Entities: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_marketplace_entities_total",
			Help: "Marketplace entities by kind and resulting status",
		}, []string{"entity", "status"}),
		Denied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_marketplace_gate_denied_total",
			Help: "Marketplace requests stopped by the gatekeeper",
		}, []string{"action"}),
		Transfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_marketplace_transfers_total",
			Help: "Settlement attempts for approved payouts and withdrawals",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) IncrementEntity(entity, status string) {
	if m == nil {
		return
	}
	m.Entities.WithLabelValues(entity, status).Inc()
}

func (m *Metrics) IncrementDenied(action string) {
	if m == nil {
		return
	}
	m.Denied.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementTransfer(kind, result string) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(kind, result).Inc()
}
