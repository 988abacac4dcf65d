package models

import (
	"strings"
	"time"

	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Outcome is a reviewer's ruling on an escalated decision.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return OutcomeApproved, nil
	case "reject", "rejected":
		return OutcomeRejected, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown review outcome: "+s)
}

// Resolution records who closed an item and how.
type Resolution struct {
	Outcome    Outcome   `json:"outcome"`
	Reviewer   string    `json:"reviewer"`
	Note       string    `json:"note,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Item is one escalated decision awaiting a human.
type Item struct {
	ID         id.ReviewID               `json:"id"`
	Action     compliance.ApprovalAction `json:"action"`
	EntityID   string                    `json:"entity_id"`
	UserID     id.UserID                 `json:"user_id"`
	Reason     string                    `json:"reason"`
	EnqueuedAt time.Time                 `json:"enqueued_at"`
	Status     Status                    `json:"status"`
	Resolution *Resolution               `json:"resolution,omitempty"`
}

func NewItem(action compliance.ApprovalAction, entityID string, userID id.UserID, reason string, now time.Time) (*Item, error) {
	if !action.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown review action: "+string(action))
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "review entity id is required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "review user id is required")
	}
	return &Item{
		ID:         id.NewReviewID(),
		Action:     action,
		EntityID:   entityID,
		UserID:     userID,
		Reason:     reason,
		EnqueuedAt: now,
		Status:     StatusOpen,
	}, nil
}

// DedupeKey identifies the entity an item is about. At most one open item
// exists per key.
func (i *Item) DedupeKey() string {
	return DedupeKey(i.Action, i.EntityID)
}

func DedupeKey(action compliance.ApprovalAction, entityID string) string {
	return string(action) + ":" + entityID
}

// Resolve closes an open item.
func (i *Item) Resolve(r Resolution) error {
	if i.Status != StatusOpen {
		return dErrors.New(dErrors.CodeConflict, "review item is already resolved")
	}
	i.Status = StatusResolved
	i.Resolution = &r
	return nil
}

// Reopen undoes Resolve after the resolution could not be applied.
func (i *Item) Reopen() {
	i.Status = StatusOpen
	i.Resolution = nil
}

func (i *Item) Clone() *Item {
	c := *i
	if i.Resolution != nil {
		r := *i.Resolution
		c.Resolution = &r
	}
	return &c
}
