package handler

import (
	"strings"

	"crowdfund/internal/review/models"
	"crowdfund/pkg/platform/validation"
)

// ResolveRequest is the body for POST /admin/reviews/{id}/resolve.
type ResolveRequest struct {
	Outcome  string `json:"outcome" validate:"required,oneof=approve approved reject rejected"`
	Reviewer string `json:"reviewer" validate:"required,max=254"`
	Note     string `json:"note,omitempty" validate:"max=2000"`

	parsedOutcome models.Outcome
}

func (r *ResolveRequest) Validate() error {
	r.Outcome = strings.ToLower(strings.TrimSpace(r.Outcome))
	r.Reviewer = strings.TrimSpace(r.Reviewer)
	if err := validation.Struct(r); err != nil {
		return err
	}
	outcome, err := models.ParseOutcome(r.Outcome)
	if err != nil {
		return err
	}
	r.parsedOutcome = outcome
	return nil
}
