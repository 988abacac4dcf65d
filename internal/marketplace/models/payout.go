package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
)

// PayoutKind separates owner disbursements from investor withdrawals. Both
// go through the payout gate and the payout auto-approval rules.
type PayoutKind string

const (
	KindPayout     PayoutKind = "payout"
	KindWithdrawal PayoutKind = "withdrawal"
)

// PayoutStatus tracks a transfer from request to settlement.
//
//	pending_review -> approved | rejected
//	approved       -> transferred | failed
type PayoutStatus string

const (
	PayoutPendingReview PayoutStatus = "pending_review"
	PayoutApproved      PayoutStatus = "approved"
	PayoutTransferred   PayoutStatus = "transferred"
	PayoutRejected      PayoutStatus = "rejected"
	PayoutFailed        PayoutStatus = "failed"
)

// HoldsFunds reports whether the payout still has money set aside on the
// project.
func (s PayoutStatus) HoldsFunds() bool {
	return s == PayoutPendingReview || s == PayoutApproved || s == PayoutTransferred
}

type Payout struct {
	ID                id.PayoutID         `json:"id"`
	ProjectID         id.ProjectID        `json:"project_id"`
	UserID            id.UserID           `json:"user_id"`
	Kind              PayoutKind          `json:"kind"`
	Amount            decimal.Decimal     `json:"amount"`
	Status            PayoutStatus        `json:"status"`
	Decision          compliance.Decision `json:"decision"`
	ProviderReference string              `json:"provider_reference,omitempty"`
	FailureReason     string              `json:"failure_reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func NewPayout(payoutID id.PayoutID, projectID id.ProjectID, userID id.UserID, kind PayoutKind, amount decimal.Decimal, now time.Time) (*Payout, error) {
	if kind != KindPayout && kind != KindWithdrawal {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown payout kind: "+string(kind))
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return &Payout{
		ID:        payoutID,
		ProjectID: projectID,
		UserID:    userID,
		Kind:      kind,
		Amount:    amount.Round(2),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Payout) ApplyDecision(d compliance.Decision, now time.Time) {
	p.Decision = d
	switch d.Outcome {
	case compliance.OutcomeApprove:
		p.Status = PayoutApproved
	case compliance.OutcomeEscalate:
		p.Status = PayoutPendingReview
	default:
		p.Status = PayoutRejected
	}
	p.UpdatedAt = now
}

func (p *Payout) ApplyReview(approved bool, now time.Time) error {
	if p.Status != PayoutPendingReview {
		return dErrors.New(dErrors.CodeConflict, "payout is not awaiting review")
	}
	p.Status = PayoutRejected
	if approved {
		p.Status = PayoutApproved
	}
	p.UpdatedAt = now
	return nil
}

func (p *Payout) MarkTransferred(reference string, now time.Time) error {
	if p.Status != PayoutApproved {
		return dErrors.New(dErrors.CodeConflict, "payout is not approved for transfer")
	}
	p.Status = PayoutTransferred
	p.ProviderReference = reference
	p.UpdatedAt = now
	return nil
}

func (p *Payout) MarkFailed(reason string, now time.Time) error {
	if p.Status != PayoutApproved {
		return dErrors.New(dErrors.CodeConflict, "payout is not approved for transfer")
	}
	p.Status = PayoutFailed
	p.FailureReason = strings.TrimSpace(reason)
	p.UpdatedAt = now
	return nil
}

func (p *Payout) Clone() *Payout {
	c := *p
	return &c
}
