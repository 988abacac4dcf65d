package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"crowdfund/pkg/platform/validation"
)

// CreateProjectRequest is the body for POST /projects. Goal accepts a JSON
// number or a decimal string.
type CreateProjectRequest struct {
	Title        string          `json:"title" validate:"required,max=200"`
	Summary      string          `json:"summary" validate:"max=4000"`
	FundingModel string          `json:"funding_model" validate:"required,oneof=equity royalty"`
	Goal         decimal.Decimal `json:"goal" validate:"required,gt=0"`
}

func (r *CreateProjectRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Summary = strings.TrimSpace(r.Summary)
	r.FundingModel = strings.ToLower(strings.TrimSpace(r.FundingModel))
	return validation.Struct(r)
}

// AmountRequest is the body for investments, payouts and withdrawals.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

func (r *AmountRequest) Validate() error {
	return validation.Struct(r)
}
