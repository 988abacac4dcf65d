package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers gatekeeper verdicts and auto-approval decisions.
type Metrics struct {
	Verdicts         *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
	RecordFailures   *prometheus.CounterVec
	EvaluateDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_gatekeeper_verdicts_total",
			Help: "Gatekeeper verdicts by action, mode and result",
		}, []string{"action", "mode", "allowed"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_auto_approval_decisions_total",
			Help: "Auto-approval decisions by action and outcome",
		}, []string{"action", "outcome"}),
		RecordFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_decision_record_failures_total",
			Help: "Decisions that could not be published or queued, by stage",
		}, []string{"stage"}),
		EvaluateDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crowdfund_compliance_evaluate_duration_seconds",
			Help:    "Time spent loading state and evaluating a compliance rule",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"engine"}),
	}
}

func (m *Metrics) IncrementVerdict(action, mode string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.Verdicts.WithLabelValues(action, mode, result).Inc()
}

func (m *Metrics) IncrementDecision(action, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementRecordFailure(stage string) {
	if m == nil {
		return
	}
	m.RecordFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveEvaluate(engine string, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluateDuration.WithLabelValues(engine).Observe(d.Seconds())
}
