package handler

import (
	"time"

	"crowdfund/internal/compliance"
	"crowdfund/internal/marketplace/models"
)

type ProjectResponse struct {
	ID           string               `json:"id"`
	OwnerID      string               `json:"owner_id"`
	Title        string               `json:"title"`
	Summary      string               `json:"summary,omitempty"`
	FundingModel models.FundingModel  `json:"funding_model"`
	Goal         string               `json:"goal"`
	Raised       string               `json:"raised"`
	Disbursed    string               `json:"disbursed"`
	Available    string               `json:"available"`
	Status       models.ProjectStatus `json:"status"`
	Decision     *compliance.Decision `json:"decision,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func toProjectResponse(p *models.Project) ProjectResponse {
	return ProjectResponse{
		ID:           p.ID.String(),
		OwnerID:      p.OwnerID.String(),
		Title:        p.Title,
		Summary:      p.Summary,
		FundingModel: p.FundingModel,
		Goal:         p.Goal.StringFixed(2),
		Raised:       p.Raised.StringFixed(2),
		Disbursed:    p.Disbursed.StringFixed(2),
		Available:    p.Available().StringFixed(2),
		Status:       p.Status,
		Decision:     p.Decision,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type InvestmentResponse struct {
	ID         string                  `json:"id"`
	ProjectID  string                  `json:"project_id"`
	InvestorID string                  `json:"investor_id"`
	Amount     string                  `json:"amount"`
	Status     models.InvestmentStatus `json:"status"`
	Decision   compliance.Decision     `json:"decision"`
	CreatedAt  time.Time               `json:"created_at"`
}

func toInvestmentResponse(i *models.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:         i.ID.String(),
		ProjectID:  i.ProjectID.String(),
		InvestorID: i.InvestorID.String(),
		Amount:     i.Amount.StringFixed(2),
		Status:     i.Status,
		Decision:   i.Decision,
		CreatedAt:  i.CreatedAt,
	}
}

type PayoutResponse struct {
	ID                string              `json:"id"`
	ProjectID         string              `json:"project_id"`
	UserID            string              `json:"user_id"`
	Kind              models.PayoutKind   `json:"kind"`
	Amount            string              `json:"amount"`
	Status            models.PayoutStatus `json:"status"`
	Decision          compliance.Decision `json:"decision"`
	ProviderReference string              `json:"provider_reference,omitempty"`
	FailureReason     string              `json:"failure_reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func toPayoutResponse(p *models.Payout) PayoutResponse {
	return PayoutResponse{
		ID:                p.ID.String(),
		ProjectID:         p.ProjectID.String(),
		UserID:            p.UserID.String(),
		Kind:              p.Kind,
		Amount:            p.Amount.StringFixed(2),
		Status:            p.Status,
		Decision:          p.Decision,
		ProviderReference: p.ProviderReference,
		FailureReason:     p.FailureReason,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// DeniedResponse is the 403 body when the gatekeeper stops an action.
type DeniedResponse struct {
	Error  string                `json:"error"`
	Action compliance.GateAction `json:"action"`
	compliance.Verdict
}
