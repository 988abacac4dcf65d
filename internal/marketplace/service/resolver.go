package service

import (
	"context"

	"crowdfund/internal/compliance"
	"crowdfund/internal/marketplace/models"
	"crowdfund/internal/marketplace/store"
	reviewmodels "crowdfund/internal/review/models"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/requestcontext"
)

// ReviewActions are the review item actions ApplyReview settles.
func (s *Service) ReviewActions() []compliance.ApprovalAction {
	return []compliance.ApprovalAction{
		compliance.ApprovalProject,
		compliance.ApprovalInvestment,
		compliance.ApprovalPayout,
	}
}

// ApplyReview settles an escalated marketplace entity once a reviewer has
// ruled on it.
func (s *Service) ApplyReview(ctx context.Context, item reviewmodels.Item, approved bool) error {
	switch item.Action {
	case compliance.ApprovalProject:
		return s.reviewProject(ctx, item, approved)
	case compliance.ApprovalInvestment:
		return s.reviewInvestment(ctx, item, approved)
	case compliance.ApprovalPayout:
		return s.reviewPayout(ctx, item, approved)
	default:
		return dErrors.New(dErrors.CodeInternal, "marketplace cannot resolve "+string(item.Action)+" reviews")
	}
}

func (s *Service) reviewProject(ctx context.Context, item reviewmodels.Item, approved bool) error {
	projectID, err := id.ParseProjectID(item.EntityID)
	if err != nil {
		return err
	}
	var status models.ProjectStatus
	err = s.tx.RunInTx(ctx, projectID, func(ctx context.Context, st store.Store) error {
		project, err := st.FindProjectForUpdate(ctx, projectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		if err := project.ApplyReview(approved, requestcontext.Now(ctx)); err != nil {
			return err
		}
		status = project.Status
		return wrapNil(st.UpdateProject(ctx, project), "project")
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementEntity("project", string(status))
	s.logReview(ctx, item, approved, string(status))
	return nil
}

func (s *Service) reviewInvestment(ctx context.Context, item reviewmodels.Item, approved bool) error {
	investmentID, err := id.ParseInvestmentID(item.EntityID)
	if err != nil {
		return err
	}
	inv, err := s.store.FindInvestment(ctx, investmentID)
	if err != nil {
		return wrapStoreErr(err, "investment")
	}
	var status models.InvestmentStatus
	err = s.tx.RunInTx(ctx, inv.ProjectID, func(ctx context.Context, st store.Store) error {
		project, err := st.FindProjectForUpdate(ctx, inv.ProjectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		current, err := st.FindInvestment(ctx, investmentID)
		if err != nil {
			return wrapStoreErr(err, "investment")
		}
		now := requestcontext.Now(ctx)
		if err := current.ApplyReview(approved, now); err != nil {
			return err
		}
		if approved {
			project.Credit(current.Amount, now)
			if err := st.UpdateProject(ctx, project); err != nil {
				return wrapStoreErr(err, "project")
			}
		}
		status = current.Status
		return wrapNil(st.UpdateInvestment(ctx, current), "investment")
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementEntity("investment", string(status))
	s.logReview(ctx, item, approved, string(status))
	return nil
}

// reviewPayout settles escalated payouts. Payouts rejected because payouts
// are blocked are routed to a reviewer for visibility only; the rejection
// stands whatever the reviewer decides. An approval that committed on an
// earlier attempt also stands, and its settlement is retried.
func (s *Service) reviewPayout(ctx context.Context, item reviewmodels.Item, approved bool) error {
	payoutID, err := id.ParsePayoutID(item.EntityID)
	if err != nil {
		return err
	}
	p, err := s.store.FindPayout(ctx, payoutID)
	if err != nil {
		return wrapStoreErr(err, "payout")
	}
	switch p.Status {
	case models.PayoutRejected, models.PayoutTransferred, models.PayoutFailed:
		s.logReview(ctx, item, approved, string(p.Status))
		return nil
	case models.PayoutApproved:
		settled := s.settleOrDefer(ctx, p)
		s.logReview(ctx, item, approved, string(settled.Status))
		return nil
	}

	var reviewed *models.Payout
	err = s.tx.RunInTx(ctx, p.ProjectID, func(ctx context.Context, st store.Store) error {
		project, err := st.FindProjectForUpdate(ctx, p.ProjectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		current, err := st.FindPayout(ctx, payoutID)
		if err != nil {
			return wrapStoreErr(err, "payout")
		}
		now := requestcontext.Now(ctx)
		if err := current.ApplyReview(approved, now); err != nil {
			return err
		}
		if !approved {
			releaseFunds(project, current, now)
			if err := st.UpdateProject(ctx, project); err != nil {
				return wrapStoreErr(err, "project")
			}
		}
		reviewed = current
		return wrapNil(st.UpdatePayout(ctx, current), "payout")
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementEntity(string(reviewed.Kind), string(reviewed.Status))
	s.logReview(ctx, item, approved, string(reviewed.Status))
	if reviewed.Status == models.PayoutApproved {
		s.settleOrDefer(ctx, reviewed)
	}
	return nil
}

func (s *Service) logReview(ctx context.Context, item reviewmodels.Item, approved bool, status string) {
	s.logger.InfoContext(ctx, "marketplace review applied",
		"request_id", requestcontext.RequestID(ctx),
		"review_id", item.ID,
		"action", item.Action,
		"entity_id", item.EntityID,
		"approved", approved,
		"status", status,
	)
}

func wrapNil(err error, entity string) error {
	if err == nil {
		return nil
	}
	return wrapStoreErr(err, entity)
}
