package service

import (
	"context"
	"log/slog"

	accountmodels "crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	reviewmodels "crowdfund/internal/review/models"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/requestcontext"
)

// AccountReviewer applies reviewer outcomes to accounts.
type AccountReviewer interface {
	ResolveFallbackReview(ctx context.Context, userID id.UserID, approved bool) (*accountmodels.Account, error)
	RecordKYCResult(ctx context.Context, userID id.UserID, status compliance.KYCStatus) (*accountmodels.Account, error)
}

// AccountResolver closes review items raised for account-level submissions.
//   - fallback_kyc: approve or reject fallback verification
//   - kyc: a manual KYC ruling becomes the account's KYC status
//   - document, upgrade: acknowledged only; no account state depends on them
type AccountResolver struct {
	accounts AccountReviewer
	logger   *slog.Logger
}

func NewAccountResolver(accounts AccountReviewer, logger *slog.Logger) *AccountResolver {
	return &AccountResolver{accounts: accounts, logger: logger}
}

// Actions lists the review actions this resolver handles.
func (r *AccountResolver) Actions() []compliance.ApprovalAction {
	return []compliance.ApprovalAction{
		compliance.ApprovalFallbackKYC,
		compliance.ApprovalKYC,
		compliance.ApprovalDocument,
		compliance.ApprovalUpgrade,
	}
}

func (r *AccountResolver) ApplyReview(ctx context.Context, item reviewmodels.Item, approved bool) error {
	switch item.Action {
	case compliance.ApprovalFallbackKYC:
		_, err := r.accounts.ResolveFallbackReview(ctx, item.UserID, approved)
		return err
	case compliance.ApprovalKYC:
		status := compliance.KYCFailed
		if approved {
			status = compliance.KYCPassed
		}
		_, err := r.accounts.RecordKYCResult(ctx, item.UserID, status)
		return err
	}
	r.logger.InfoContext(ctx, "review acknowledged without account change",
		"request_id", requestcontext.RequestID(ctx),
		"review_id", item.ID,
		"action", item.Action,
		"approved", approved,
	)
	return nil
}
