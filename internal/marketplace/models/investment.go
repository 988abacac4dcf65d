package models

import (
	"time"

	"github.com/shopspring/decimal"

	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
)

// InvestmentStatus tracks an investment through auto-approval and review.
type InvestmentStatus string

const (
	InvestmentPendingReview InvestmentStatus = "pending_review"
	InvestmentApproved      InvestmentStatus = "approved"
	InvestmentRejected      InvestmentStatus = "rejected"
)

// Investment is a pledge by an investor into a published project. Only
// approved investments count towards the project's raised amount.
type Investment struct {
	ID         id.InvestmentID     `json:"id"`
	ProjectID  id.ProjectID        `json:"project_id"`
	InvestorID id.UserID           `json:"investor_id"`
	Amount     decimal.Decimal     `json:"amount"`
	Status     InvestmentStatus    `json:"status"`
	Decision   compliance.Decision `json:"decision"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func NewInvestment(investmentID id.InvestmentID, projectID id.ProjectID, investorID id.UserID, amount decimal.Decimal, now time.Time) (*Investment, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return &Investment{
		ID:         investmentID,
		ProjectID:  projectID,
		InvestorID: investorID,
		Amount:     amount.Round(2),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ApplyDecision sets the initial status. It reports whether the amount now
// counts towards the project.
func (i *Investment) ApplyDecision(d compliance.Decision, now time.Time) bool {
	i.Decision = d
	switch d.Outcome {
	case compliance.OutcomeApprove:
		i.Status = InvestmentApproved
	case compliance.OutcomeEscalate:
		i.Status = InvestmentPendingReview
	default:
		i.Status = InvestmentRejected
	}
	i.UpdatedAt = now
	return i.Status == InvestmentApproved
}

func (i *Investment) ApplyReview(approved bool, now time.Time) error {
	if i.Status != InvestmentPendingReview {
		return dErrors.New(dErrors.CodeConflict, "investment is not awaiting review")
	}
	i.Status = InvestmentRejected
	if approved {
		i.Status = InvestmentApproved
	}
	i.UpdatedAt = now
	return nil
}

func (i *Investment) Clone() *Investment {
	c := *i
	return &c
}

// ValidateAmount requires a positive amount with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return dErrors.New(dErrors.CodeInvalidInput, "amount has more than two decimal places")
	}
	return nil
}
