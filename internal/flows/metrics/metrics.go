package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks LLM generation attempts per model.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	BreakerOpen     *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_flow_attempts_total",
			Help: "Generation attempts by flow, model and result",
		}, []string{"flow", "model", "result"}),
		AttemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crowdfund_flow_attempt_duration_seconds",
			Help:    "Latency of single generation attempts",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"model"}),
		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdfund_flow_breaker_open",
			Help: "1 while the model's circuit breaker is open",
		}, []string{"model"}),
	}
}

func (m *Metrics) ObserveAttempt(flow, model, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(flow, model, result).Inc()
	m.AttemptDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) SetBreakerOpen(model string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.WithLabelValues(model).Set(v)
}
