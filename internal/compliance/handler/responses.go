package handler

import (
	accountmodels "crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
)

// DecisionResponse is returned by auto-approval submissions.
type DecisionResponse struct {
	ActionType compliance.ApprovalAction `json:"action_type"`
	EntityID   string                    `json:"entity_id"`
	compliance.Decision
}

// VerificationResponse reports an account's verification state after a
// change, plus the decision it triggered, if any.
type VerificationResponse struct {
	UserID       string                       `json:"user_id"`
	Mode         compliance.Mode              `json:"mode"`
	Verification compliance.VerificationState `json:"verification"`
	Decision     *compliance.Decision         `json:"decision,omitempty"`
}

func toVerificationResponse(a *accountmodels.Account, d *compliance.Decision) VerificationResponse {
	return VerificationResponse{
		UserID:       a.ID.String(),
		Mode:         compliance.ModeFor(a.CountrySupport),
		Verification: a.VerificationState(),
		Decision:     d,
	}
}
