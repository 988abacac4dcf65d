package compliance

import dErrors "crowdfund/pkg/domain-errors"

// RiskScoreRejectThreshold is the score at or above which a profile is rejected.
const RiskScoreRejectThreshold = 60

const (
	ReasonKYCFailed       = "KYC status is failed"
	ReasonHighRiskTier    = "Risk tier is high"
	ReasonHighRisk        = "High risk score or red flags"
	ReasonPayoutBlocked   = "Payout is blocked pending fallback KYC"
	ReasonAllChecksPassed = "All compliance checks passed"
	ReasonFallbackPending = "Fallback KYC is pending review"
	ReasonKYCPending      = "KYC status is pending"
	ReasonMixedSignals    = "Mixed signals require human review"

	// ReasonFallbackDocumentsReady queues a complete fallback document set
	// for the manual approval that fallback payouts require.
	ReasonFallbackDocumentsReady = "Fallback documents complete, manual approval required"
)

// DecideAutoApproval produces a routine compliance decision for an entity-mutating
// submission. Pure: no I/O, safe for concurrent use. The entity snapshot is
// carried for per-action rules but no rule reads it yet.
//
// Rule priority (first match wins):
//  1. Hard reject: high tier, score >= 60, any flag, or failed KYC
//  2. Blocked payout: reject but still route to a human
//  3. Approve when every signal is clean
//  4. Escalate everything else
func DecideAutoApproval(profile RiskProfile, action ApprovalAction, _ EntitySnapshot) (Decision, error) {
	if err := profile.Validate(); err != nil {
		return Decision{}, err
	}
	if !action.IsValid() {
		return Decision{}, dErrors.New(dErrors.CodeInvalidInput, "unknown approval action: "+string(action))
	}

	if reason, ok := hardRejectReason(profile); ok {
		return Decision{Outcome: OutcomeReject, Reason: reason}, nil
	}

	if action == ApprovalPayout && profile.PayoutBlocked {
		return Decision{Outcome: OutcomeReject, Reason: ReasonPayoutBlocked, RequiresManualReview: true}, nil
	}

	if qualifiesForApproval(profile, action) {
		return Decision{Outcome: OutcomeApprove, Reason: ReasonAllChecksPassed}, nil
	}

	return Decision{Outcome: OutcomeEscalate, Reason: escalationReason(profile), RequiresManualReview: true}, nil
}

// hardRejectReason reports the most specific reason when several hard-reject
// conditions hold: failed KYC, then high tier, then score/flags.
func hardRejectReason(p RiskProfile) (string, bool) {
	switch {
	case p.KYCStatus == KYCFailed:
		return ReasonKYCFailed, true
	case p.RiskTier == RiskHigh:
		return ReasonHighRiskTier, true
	case p.RiskScore >= RiskScoreRejectThreshold || len(p.RiskFlags) > 0:
		return ReasonHighRisk, true
	}
	return "", false
}

func qualifiesForApproval(p RiskProfile, action ApprovalAction) bool {
	tierOK := p.RiskTier == RiskLow || p.RiskTier == RiskMedium
	fallbackOK := p.FallbackKYCStatus == FallbackApproved || p.FallbackKYCStatus == FallbackNotRequired
	payoutOK := action != ApprovalPayout || !p.PayoutBlocked
	return tierOK &&
		len(p.RiskFlags) == 0 &&
		p.RiskScore < RiskScoreRejectThreshold &&
		p.KYCStatus == KYCPassed &&
		fallbackOK &&
		payoutOK
}

func escalationReason(p RiskProfile) string {
	switch {
	case p.FallbackKYCStatus == FallbackPending:
		return ReasonFallbackPending
	case p.KYCStatus == KYCPending:
		return ReasonKYCPending
	default:
		return ReasonMixedSignals
	}
}
