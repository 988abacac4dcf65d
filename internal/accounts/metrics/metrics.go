package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks account lifecycle and verification transitions.
type Metrics struct {
	AccountsRegistered  *prometheus.CounterVec
	KYCResults          *prometheus.CounterVec
	DocumentsUploaded   *prometheus.CounterVec
	FallbackResolutions *prometheus.CounterVec
}

// New registers the account metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AccountsRegistered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_accounts_registered_total",
			Help: "Accounts registered, by role and verification mode",
		}, []string{"role", "mode"}),
		KYCResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_kyc_results_total",
			Help: "KYC provider outcomes recorded",
		}, []string{"status"}),
		DocumentsUploaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_fallback_documents_uploaded_total",
			Help: "Fallback verification documents uploaded",
		}, []string{"kind"}),
		FallbackResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_fallback_resolutions_total",
			Help: "Manual fallback review resolutions",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementRegistered(role, mode string) {
	if m == nil {
		return
	}
	m.AccountsRegistered.WithLabelValues(role, mode).Inc()
}

func (m *Metrics) IncrementKYCResult(status string) {
	if m == nil {
		return
	}
	m.KYCResults.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementDocumentUploaded(kind string) {
	if m == nil {
		return
	}
	m.DocumentsUploaded.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementFallbackResolution(approved bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	m.FallbackResolutions.WithLabelValues(outcome).Inc()
}
