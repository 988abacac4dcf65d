package handler

import (
	"strings"

	"crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/pkg/platform/validation"
)

// RegisterRequest is the body for POST /accounts.
type RegisterRequest struct {
	Email   string `json:"email" validate:"required,email,max=254"`
	Role    string `json:"role" validate:"required,oneof=investor owner"`
	Country string `json:"country" validate:"required,len=2,alpha"`
}

// Validate implements httputil.Validatable.
func (r *RegisterRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.Country = strings.TrimSpace(r.Country)
	return validation.Struct(r)
}

// ChangeCountryRequest is the body for PUT /accounts/me/country.
type ChangeCountryRequest struct {
	Country string `json:"country" validate:"required,len=2,alpha"`
}

func (r *ChangeCountryRequest) Validate() error {
	r.Country = strings.TrimSpace(r.Country)
	return validation.Struct(r)
}

// UpdateRiskRequest is the body for POST /admin/accounts/{id}/risk.
type UpdateRiskRequest struct {
	RiskScore       *float64 `json:"risk_score" validate:"required,gte=0"`
	RiskTier        string   `json:"risk_tier" validate:"required,oneof=low medium high"`
	RiskFlags       []string `json:"risk_flags" validate:"max=32,dive,required,max=64"`
	CountryRiskTier string   `json:"country_risk_tier,omitempty" validate:"omitempty,oneof=tier1 tier2 tier3"`
}

func (r *UpdateRiskRequest) Validate() error {
	r.RiskTier = strings.ToLower(strings.TrimSpace(r.RiskTier))
	r.CountryRiskTier = strings.ToLower(strings.TrimSpace(r.CountryRiskTier))
	return validation.Struct(r)
}

func (r *UpdateRiskRequest) toUpdate() models.RiskUpdate {
	return models.RiskUpdate{
		Score:           *r.RiskScore,
		Tier:            compliance.RiskTier(r.RiskTier),
		Flags:           r.RiskFlags,
		CountryRiskTier: compliance.CountryRiskTier(r.CountryRiskTier),
	}
}
