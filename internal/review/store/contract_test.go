package store

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"crowdfund/internal/compliance"
	"crowdfund/internal/review/models"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/sentinel"
)

type reviewStore interface {
	Add(ctx context.Context, item *models.Item) (*models.Item, bool, error)
	Get(ctx context.Context, reviewID id.ReviewID) (*models.Item, error)
	ListOpen(ctx context.Context, limit int) ([]*models.Item, error)
	Execute(ctx context.Context, reviewID id.ReviewID, validate func(*models.Item) error, mutate func(*models.Item)) (*models.Item, error)
}

// storeContract is embedded by the memory and Redis suites so both backends
// are held to the same behaviour.
type storeContract struct {
	suite.Suite
	ctx   context.Context
	store reviewStore
	base  time.Time
}

func (s *storeContract) newItem(action compliance.ApprovalAction, entity string, offset time.Duration) *models.Item {
	item, err := models.NewItem(action, entity, id.NewUserID(), "needs a human", s.base.Add(offset))
	s.Require().NoError(err)
	return item
}

func resolveWith(outcome models.Outcome) (func(*models.Item) error, func(*models.Item)) {
	var res models.Resolution
	res.Outcome = outcome
	res.Reviewer = "ops@example.com"
	validate := func(i *models.Item) error {
		if i.Status != models.StatusOpen {
			return dErrors.New(dErrors.CodeConflict, "review item is already resolved")
		}
		return nil
	}
	mutate := func(i *models.Item) { _ = i.Resolve(res) }
	return validate, mutate
}

func (s *storeContract) TestAddAndGet() {
	item := s.newItem(compliance.ApprovalPayout, "payout-1", 0)
	stored, created, err := s.store.Add(s.ctx, item)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(item.ID, stored.ID)

	got, err := s.store.Get(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(compliance.ApprovalPayout, got.Action)
	s.Equal(models.StatusOpen, got.Status)
	s.True(item.EnqueuedAt.Equal(got.EnqueuedAt))

	_, err = s.store.Get(s.ctx, id.NewReviewID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContract) TestAddDeduplicatesOpenItems() {
	first := s.newItem(compliance.ApprovalFallbackKYC, "user-1", 0)
	_, _, err := s.store.Add(s.ctx, first)
	s.Require().NoError(err)

	again, created, err := s.store.Add(s.ctx, s.newItem(compliance.ApprovalFallbackKYC, "user-1", time.Minute))
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, again.ID)

	validate, mutate := resolveWith(models.OutcomeRejected)
	_, err = s.store.Execute(s.ctx, first.ID, validate, mutate)
	s.Require().NoError(err)

	_, created, err = s.store.Add(s.ctx, s.newItem(compliance.ApprovalFallbackKYC, "user-1", 2*time.Minute))
	s.Require().NoError(err)
	s.True(created, "a resolved item no longer blocks a new one")
}

func (s *storeContract) TestListOpenOrderAndLimit() {
	late := s.newItem(compliance.ApprovalProject, "p-late", 2*time.Hour)
	early := s.newItem(compliance.ApprovalProject, "p-early", time.Hour)
	mid := s.newItem(compliance.ApprovalInvestment, "i-mid", 90*time.Minute)
	for _, it := range []*models.Item{late, early, mid} {
		_, _, err := s.store.Add(s.ctx, it)
		s.Require().NoError(err)
	}

	open, err := s.store.ListOpen(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(open, 3)
	s.Equal([]string{"p-early", "i-mid", "p-late"}, []string{open[0].EntityID, open[1].EntityID, open[2].EntityID})

	limited, err := s.store.ListOpen(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(limited, 2)

	validate, mutate := resolveWith(models.OutcomeApproved)
	_, err = s.store.Execute(s.ctx, early.ID, validate, mutate)
	s.Require().NoError(err)
	open, err = s.store.ListOpen(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(open, 2)
}

func (s *storeContract) TestExecuteResolveOnce() {
	item := s.newItem(compliance.ApprovalPayout, "payout-2", 0)
	_, _, err := s.store.Add(s.ctx, item)
	s.Require().NoError(err)

	validate, mutate := resolveWith(models.OutcomeApproved)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, item.ID, validate, mutate)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	s.Equal(1, successes)
	s.Equal(7, conflicts)

	got, err := s.store.Get(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusResolved, got.Status)
	s.Equal(models.OutcomeApproved, got.Resolution.Outcome)
}

func (s *storeContract) TestExecuteReopen() {
	item := s.newItem(compliance.ApprovalProject, "p-reopen", 0)
	_, _, err := s.store.Add(s.ctx, item)
	s.Require().NoError(err)
	validate, mutate := resolveWith(models.OutcomeApproved)
	_, err = s.store.Execute(s.ctx, item.ID, validate, mutate)
	s.Require().NoError(err)

	reopened, err := s.store.Execute(s.ctx, item.ID,
		func(*models.Item) error { return nil },
		func(i *models.Item) { i.Reopen() },
	)
	s.Require().NoError(err)
	s.Equal(models.StatusOpen, reopened.Status)
	s.Nil(reopened.Resolution)

	open, err := s.store.ListOpen(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(open, 1)
}
