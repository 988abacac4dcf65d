package handler

import (
	"time"

	"crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
)

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID                    string                           `json:"id"`
	Email                 string                           `json:"email"`
	Role                  string                           `json:"role"`
	Country               string                           `json:"country"`
	Mode                  compliance.Mode                  `json:"mode"`
	CountryPaymentSupport compliance.CountryPaymentSupport `json:"country_payment_support"`
	Verification          compliance.VerificationState     `json:"verification"`
	CreatedAt             time.Time                        `json:"created_at"`
	UpdatedAt             time.Time                        `json:"updated_at"`
}

// AdminAccountResponse adds the AML signals reviewers need.
type AdminAccountResponse struct {
	AccountResponse
	Risk compliance.RiskProfile `json:"risk"`
}

func toAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:                    a.ID.String(),
		Email:                 a.Email,
		Role:                  string(a.Role),
		Country:               a.Country,
		Mode:                  compliance.ModeFor(a.CountrySupport),
		CountryPaymentSupport: a.CountrySupport,
		Verification:          a.VerificationState(),
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

func toAdminAccountResponse(a *models.Account) AdminAccountResponse {
	return AdminAccountResponse{
		AccountResponse: toAccountResponse(a),
		Risk:            a.RiskProfile(),
	}
}
