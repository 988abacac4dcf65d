package service

import (
	"context"
	"log/slog"

	"crowdfund/internal/compliance"
	"crowdfund/internal/compliance/metrics"
	"crowdfund/internal/events"
	reviewmodels "crowdfund/internal/review/models"
	reviewservice "crowdfund/internal/review/service"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/requestcontext"
)

// Publisher delivers decision events downstream.
type Publisher interface {
	Publish(ctx context.Context, event events.DecisionEvent) error
}

// ReviewQueue accepts escalated decisions.
type ReviewQueue interface {
	Enqueue(ctx context.Context, in reviewservice.EnqueueInput) (*reviewmodels.Item, error)
}

// Recorder makes a decision durable: the event is published and, when a human
// must look at it, the item is queued. Callers commit entity state only after
// Record succeeds.
type Recorder struct {
	publisher Publisher
	queue     ReviewQueue
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type RecorderOption func(*Recorder)

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

func NewRecorder(publisher Publisher, queue ReviewQueue, opts ...RecorderOption) *Recorder {
	r := &Recorder{publisher: publisher, queue: queue, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Record(ctx context.Context, rec compliance.DecisionRecord) error {
	requestID := requestcontext.RequestID(ctx)
	if err := r.publisher.Publish(ctx, events.FromRecord(rec, requestID)); err != nil {
		r.metrics.IncrementRecordFailure("publish")
		r.logger.ErrorContext(ctx, "decision event not published",
			"request_id", requestID,
			"user_id", rec.UserID,
			"action", rec.Action,
			"entity_id", rec.EntityID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "decision could not be recorded")
	}
	if rec.NeedsReview() {
		if _, err := r.queue.Enqueue(ctx, reviewservice.EnqueueInput{
			Action:   rec.Action,
			EntityID: rec.EntityID,
			UserID:   rec.UserID,
			Reason:   rec.QueueReason(),
		}); err != nil {
			r.metrics.IncrementRecordFailure("enqueue")
			r.logger.ErrorContext(ctx, "escalated decision not queued",
				"request_id", requestID,
				"user_id", rec.UserID,
				"action", rec.Action,
				"entity_id", rec.EntityID,
				"error", err,
			)
			if _, ok := dErrors.As(err); ok {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "decision could not be queued for review")
		}
	}
	r.metrics.IncrementDecision(string(rec.Action), string(rec.Decision.Outcome))
	return nil
}
