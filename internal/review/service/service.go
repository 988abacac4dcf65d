// Package service runs the manual review queue. Escalated decisions are
// enqueued once per entity; resolving an item hands the outcome to the
// resolver registered for its action so the owning module can apply it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"crowdfund/internal/compliance"
	"crowdfund/internal/review/metrics"
	"crowdfund/internal/review/models"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/sentinel"
	"crowdfund/pkg/requestcontext"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store persists review items. Execute must be atomic per item.
type Store interface {
	Add(ctx context.Context, item *models.Item) (*models.Item, bool, error)
	Get(ctx context.Context, reviewID id.ReviewID) (*models.Item, error)
	ListOpen(ctx context.Context, limit int) ([]*models.Item, error)
	Execute(ctx context.Context, reviewID id.ReviewID, validate func(*models.Item) error, mutate func(*models.Item)) (*models.Item, error)
}

// Resolver applies a reviewer's outcome to the entity behind an item.
type Resolver interface {
	ApplyReview(ctx context.Context, item models.Item, approved bool) error
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, item models.Item, approved bool) error

func (f ResolverFunc) ApplyReview(ctx context.Context, item models.Item, approved bool) error {
	return f(ctx, item, approved)
}

type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	resolvers map[compliance.ApprovalAction]Resolver
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("review store is required")
	}
	s := &Service{
		store:     store,
		logger:    slog.Default(),
		resolvers: make(map[compliance.ApprovalAction]Resolver),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterResolver binds resolver to the items of each listed action.
func (s *Service) RegisterResolver(resolver Resolver, actions ...compliance.ApprovalAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		s.resolvers[a] = resolver
	}
}

// EnqueueInput describes an escalated decision.
type EnqueueInput struct {
	Action   compliance.ApprovalAction
	EntityID string
	UserID   id.UserID
	Reason   string
}

// Enqueue adds an item, or returns the open item already covering the entity.
func (s *Service) Enqueue(ctx context.Context, in EnqueueInput) (*models.Item, error) {
	item, err := models.NewItem(in.Action, in.EntityID, in.UserID, in.Reason, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	stored, created, err := s.store.Add(ctx, item)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if created {
		s.metrics.IncrementEnqueued(string(in.Action))
	}
	s.logger.InfoContext(ctx, "review item enqueued",
		"request_id", requestcontext.RequestID(ctx),
		"review_id", stored.ID,
		"action", stored.Action,
		"entity_id", stored.EntityID,
		"user_id", stored.UserID,
		"deduplicated", !created,
	)
	return stored, nil
}

func (s *Service) Get(ctx context.Context, reviewID id.ReviewID) (*models.Item, error) {
	item, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return item, nil
}

// ListOpen returns open items oldest first, clamped to MaxListLimit.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]*models.Item, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	items, err := s.store.ListOpen(ctx, limit)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return items, nil
}

// ResolveInput is a reviewer's ruling.
type ResolveInput struct {
	ReviewID id.ReviewID
	Outcome  models.Outcome
	Reviewer string
	Note     string
}

// Resolve claims the item, applies the outcome through its resolver and
// reopens the item if the resolver fails, so two reviewers can never apply
// conflicting outcomes.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (*models.Item, error) {
	reviewer := strings.TrimSpace(in.Reviewer)
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}
	if in.Outcome != models.OutcomeApproved && in.Outcome != models.OutcomeRejected {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown review outcome: "+string(in.Outcome))
	}
	resolution := models.Resolution{
		Outcome:    in.Outcome,
		Reviewer:   reviewer,
		Note:       strings.TrimSpace(in.Note),
		ResolvedAt: requestcontext.Now(ctx),
	}

	var resolver Resolver
	claimed, err := s.store.Execute(ctx, in.ReviewID,
		func(item *models.Item) error {
			if item.Status != models.StatusOpen {
				return dErrors.New(dErrors.CodeConflict, "review item is already resolved")
			}
			s.mu.RLock()
			resolver = s.resolvers[item.Action]
			s.mu.RUnlock()
			if resolver == nil {
				return dErrors.New(dErrors.CodeInternal, "no resolver registered for "+string(item.Action))
			}
			return nil
		},
		func(item *models.Item) { _ = item.Resolve(resolution) },
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if err := resolver.ApplyReview(ctx, *claimed, in.Outcome == models.OutcomeApproved); err != nil {
		if _, rerr := s.store.Execute(ctx, in.ReviewID,
			func(*models.Item) error { return nil },
			func(item *models.Item) { item.Reopen() },
		); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to reopen review item after resolver error",
				"request_id", requestcontext.RequestID(ctx),
				"review_id", in.ReviewID,
				"error", rerr,
			)
		}
		return nil, err
	}

	s.metrics.IncrementResolved(string(claimed.Action), string(in.Outcome))
	s.logger.InfoContext(ctx, "review item resolved",
		"request_id", requestcontext.RequestID(ctx),
		"review_id", claimed.ID,
		"action", claimed.Action,
		"entity_id", claimed.EntityID,
		"outcome", in.Outcome,
		"reviewer", reviewer,
	)
	return claimed, nil
}

func wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "review item not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "another open review covers this entity")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "review queue busy, retry")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "review store failure")
}
