package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Checks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_ratelimit_checks_total",
			Help: "Rate limit checks by route class and result (allowed, limited, error)",
		}, []string{"class", "result"}),
	}
}

func (m *Metrics) IncrementCheck(class, result string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(class, result).Inc()
}
