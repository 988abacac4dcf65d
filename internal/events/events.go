// Package events publishes compliance decisions to downstream consumers.
//
// Publishing is fail-closed: callers record the event before committing the
// decision and abort when Publish returns an error. Consumers must treat
// EventID as an idempotency key because a decision can be published and then
// fail to commit.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
)

// DecisionEvent is the payload written for every auto-approval decision.
type DecisionEvent struct {
	EventID              uuid.UUID                 `json:"event_id"`
	UserID               id.UserID                 `json:"user_id"`
	Action               compliance.ApprovalAction `json:"action"`
	EntityID             string                    `json:"entity_id"`
	Outcome              compliance.Outcome        `json:"decision"`
	Reason               string                    `json:"reason"`
	RequiresManualReview bool                      `json:"requires_manual_review"`
	DecidedAt            time.Time                 `json:"decided_at"`
	RequestID            string                    `json:"request_id,omitempty"`
}

// FromRecord builds an event with a fresh EventID.
func FromRecord(r compliance.DecisionRecord, requestID string) DecisionEvent {
	return DecisionEvent{
		EventID:              uuid.New(),
		UserID:               r.UserID,
		Action:               r.Action,
		EntityID:             r.EntityID,
		Outcome:              r.Decision.Outcome,
		Reason:               r.Decision.Reason,
		RequiresManualReview: r.Decision.RequiresManualReview,
		DecidedAt:            r.DecidedAt,
		RequestID:            requestID,
	}
}

// Publisher delivers decision events.
type Publisher interface {
	Publish(ctx context.Context, event DecisionEvent) error
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, DecisionEvent) error { return nil }
