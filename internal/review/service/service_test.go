package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"crowdfund/internal/compliance"
	"crowdfund/internal/review/metrics"
	"crowdfund/internal/review/models"
	"crowdfund/internal/review/store"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/requestcontext"
)

// =============================================================================
// Review Service Test Suite
// =============================================================================
// Justification for unit tests: the claim, apply, reopen sequence and resolver
// dispatch are only observable through the service.

type recordingResolver struct {
	calls []bool
	err   error
}

func (r *recordingResolver) ApplyReview(_ context.Context, _ models.Item, approved bool) error {
	r.calls = append(r.calls, approved)
	return r.err
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemoryStore
	metrics  *metrics.Metrics
	service  *Service
	fallback *recordingResolver
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
	s.store = store.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	var err error
	s.service, err = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.fallback = &recordingResolver{}
	s.service.RegisterResolver(s.fallback, compliance.ApprovalFallbackKYC)
}

func (s *ServiceSuite) enqueue(action compliance.ApprovalAction, entity string) *models.Item {
	item, err := s.service.Enqueue(s.ctx, EnqueueInput{
		Action:   action,
		EntityID: entity,
		UserID:   id.NewUserID(),
		Reason:   compliance.ReasonFallbackPending,
	})
	s.Require().NoError(err)
	return item
}

// =============================================================================
// Enqueue / List
// =============================================================================

func (s *ServiceSuite) TestEnqueue() {
	s.Run("stamps request time", func() {
		item := s.enqueue(compliance.ApprovalFallbackKYC, "u-1")
		s.Equal(models.StatusOpen, item.Status)
		s.Equal(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC), item.EnqueuedAt)
	})

	s.Run("second escalation for the same entity is folded in", func() {
		first := s.enqueue(compliance.ApprovalPayout, "p-1")
		second := s.enqueue(compliance.ApprovalPayout, "p-1")
		s.Equal(first.ID, second.ID)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Enqueued.WithLabelValues("payout")))
	})

	s.Run("rejects malformed input", func() {
		_, err := s.service.Enqueue(s.ctx, EnqueueInput{Action: "refund", EntityID: "x", UserID: id.NewUserID()})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *ServiceSuite) TestListOpenClampsLimit() {
	for _, e := range []string{"a", "b", "c"} {
		s.enqueue(compliance.ApprovalProject, e)
	}
	items, err := s.service.ListOpen(s.ctx, -1)
	s.Require().NoError(err)
	s.Len(items, 3)

	items, err = s.service.ListOpen(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(items, 2)
}

// =============================================================================
// Resolve
// =============================================================================

func (s *ServiceSuite) TestResolve() {
	s.Run("dispatches to resolver and closes item", func() {
		item := s.enqueue(compliance.ApprovalFallbackKYC, "u-approve")
		resolved, err := s.service.Resolve(s.ctx, ResolveInput{
			ReviewID: item.ID, Outcome: models.OutcomeApproved, Reviewer: " ops@example.com ",
		})
		s.Require().NoError(err)
		s.Equal(models.StatusResolved, resolved.Status)
		s.Equal("ops@example.com", resolved.Resolution.Reviewer)
		s.Equal([]bool{true}, s.fallback.calls)
	})

	s.Run("second resolution conflicts", func() {
		item := s.enqueue(compliance.ApprovalFallbackKYC, "u-twice")
		_, err := s.service.Resolve(s.ctx, ResolveInput{ReviewID: item.ID, Outcome: models.OutcomeRejected, Reviewer: "a"})
		s.Require().NoError(err)
		_, err = s.service.Resolve(s.ctx, ResolveInput{ReviewID: item.ID, Outcome: models.OutcomeApproved, Reviewer: "b"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("resolver failure reopens item", func() {
		s.fallback.err = dErrors.New(dErrors.CodeConflict, "account is not in fallback verification")
		defer func() { s.fallback.err = nil }()

		item := s.enqueue(compliance.ApprovalFallbackKYC, "u-fail")
		_, err := s.service.Resolve(s.ctx, ResolveInput{ReviewID: item.ID, Outcome: models.OutcomeApproved, Reviewer: "a"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		got, err := s.service.Get(s.ctx, item.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusOpen, got.Status)
		s.Nil(got.Resolution)
	})

	s.Run("no resolver registered", func() {
		item := s.enqueue(compliance.ApprovalUpgrade, "u-upgrade")
		_, err := s.service.Resolve(s.ctx, ResolveInput{ReviewID: item.ID, Outcome: models.OutcomeApproved, Reviewer: "a"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		got, _ := s.service.Get(s.ctx, item.ID)
		s.Equal(models.StatusOpen, got.Status)
	})

	s.Run("unknown item", func() {
		_, err := s.service.Resolve(s.ctx, ResolveInput{ReviewID: id.NewReviewID(), Outcome: models.OutcomeApproved, Reviewer: "a"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("reviewer required", func() {
		_, err := s.service.Resolve(s.ctx, ResolveInput{ReviewID: id.NewReviewID(), Outcome: models.OutcomeApproved})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestResolverFuncAdapter() {
	var got models.Item
	s.service.RegisterResolver(ResolverFunc(func(_ context.Context, item models.Item, approved bool) error {
		got = item
		if !approved {
			return errors.New("unexpected")
		}
		return nil
	}), compliance.ApprovalProject)

	item := s.enqueue(compliance.ApprovalProject, "proj-9")
	_, err := s.service.Resolve(s.ctx, ResolveInput{ReviewID: item.ID, Outcome: models.OutcomeApproved, Reviewer: "a"})
	s.Require().NoError(err)
	s.Equal("proj-9", got.EntityID)
	s.Equal(models.StatusResolved, got.Status)
}
