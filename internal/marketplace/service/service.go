package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	accountmodels "crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/internal/marketplace/metrics"
	"crowdfund/internal/marketplace/models"
	"crowdfund/internal/marketplace/store"
	"crowdfund/internal/payouts"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/sentinel"
	"crowdfund/pkg/requestcontext"
)

// Accounts loads the acting user.
type Accounts interface {
	Get(ctx context.Context, userID id.UserID) (*accountmodels.Account, error)
}

// Compliance evaluates the gatekeeper and records auto-approval decisions.
type Compliance interface {
	Gate(ctx context.Context, account *accountmodels.Account, kind compliance.GateAction, fields map[string]any) (compliance.Verdict, error)
	DecideAndRecord(ctx context.Context, account *accountmodels.Account, action compliance.ApprovalAction, entity compliance.EntitySnapshot) (compliance.Decision, error)
}

// StoreTx runs fn with the project held exclusively until fn returns.
type StoreTx interface {
	RunInTx(ctx context.Context, projectID id.ProjectID, fn func(ctx context.Context, store store.Store) error) error
}

// PayoutProvider moves money for approved payouts and withdrawals.
type PayoutProvider interface {
	Transfer(ctx context.Context, in payouts.Instruction) (string, error)
}

// Service runs marketplace actions through the gatekeeper and auto-approver.
type Service struct {
	store      store.Store
	tx         StoreTx
	accounts   Accounts
	compliance Compliance
	provider   PayoutProvider
	currency   string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCurrency(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.currency = code
		}
	}
}

func New(st store.Store, tx StoreTx, accounts Accounts, c Compliance, provider PayoutProvider, opts ...Option) (*Service, error) {
	switch {
	case st == nil:
		return nil, errors.New("marketplace store is required")
	case tx == nil:
		return nil, errors.New("marketplace transaction runner is required")
	case accounts == nil:
		return nil, errors.New("accounts are required")
	case c == nil:
		return nil, errors.New("compliance service is required")
	case provider == nil:
		return nil, errors.New("payout provider is required")
	}
	s := &Service{
		store:      st,
		tx:         tx,
		accounts:   accounts,
		compliance: c,
		provider:   provider,
		currency:   "USD",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateProjectInput describes a new draft project.
type CreateProjectInput struct {
	OwnerID      id.UserID
	Title        string
	Summary      string
	FundingModel models.FundingModel
	Goal         decimal.Decimal
}

func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	account, err := s.accounts.Get(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}
	if account.Role != compliance.RoleOwner {
		return nil, dErrors.New(dErrors.CodeForbidden, "only project owners can create projects")
	}
	project, err := models.NewProject(id.NewProjectID(), account.ID, in.Title, in.Summary, in.FundingModel, in.Goal, requestcontext.Now(ctx))
	if err != nil {
		return nil, asValidation(err)
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, wrapStoreErr(err, "project")
	}
	s.metrics.IncrementEntity("project", string(project.Status))
	s.logger.InfoContext(ctx, "project created",
		"request_id", requestcontext.RequestID(ctx),
		"project_id", project.ID,
		"owner_id", project.OwnerID,
		"funding_model", project.FundingModel,
	)
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	project, err := s.store.FindProject(ctx, projectID)
	if err != nil {
		return nil, wrapStoreErr(err, "project")
	}
	return project, nil
}

// GetInvestment returns an investment to its investor or the project owner.
func (s *Service) GetInvestment(ctx context.Context, userID id.UserID, investmentID id.InvestmentID) (*models.Investment, error) {
	inv, err := s.store.FindInvestment(ctx, investmentID)
	if err != nil {
		return nil, wrapStoreErr(err, "investment")
	}
	if inv.InvestorID != userID {
		if err := s.requireProjectOwner(ctx, inv.ProjectID, userID); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// GetPayout returns a payout or withdrawal to its recipient or the project owner.
func (s *Service) GetPayout(ctx context.Context, userID id.UserID, payoutID id.PayoutID) (*models.Payout, error) {
	p, err := s.store.FindPayout(ctx, payoutID)
	if err != nil {
		return nil, wrapStoreErr(err, "payout")
	}
	if p.UserID != userID {
		if err := s.requireProjectOwner(ctx, p.ProjectID, userID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// PublishProject asks to publish a draft. The gatekeeper must allow
// publish_project; the auto-approver then publishes, rejects or holds the
// project for review.
func (s *Service) PublishProject(ctx context.Context, ownerID id.UserID, projectID id.ProjectID) (*models.Project, error) {
	account, project, err := s.load(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != account.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the project owner can publish it")
	}
	if err := project.CanSubmitForPublication(); err != nil {
		return nil, err
	}
	if err := s.gate(ctx, account, compliance.GatePublishProject, map[string]any{
		"project_id":    project.ID.String(),
		"funding_model": string(project.FundingModel),
		"goal":          project.Goal.StringFixed(2),
	}); err != nil {
		return nil, err
	}

	var published *models.Project
	err = s.tx.RunInTx(ctx, projectID, func(ctx context.Context, st store.Store) error {
		current, err := st.FindProjectForUpdate(ctx, projectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		if err := current.CanSubmitForPublication(); err != nil {
			return err
		}
		decision, err := s.compliance.DecideAndRecord(ctx, account, compliance.ApprovalProject, compliance.EntitySnapshot{
			ID: current.ID.String(),
			Fields: map[string]any{
				"title":         current.Title,
				"funding_model": string(current.FundingModel),
				"goal":          current.Goal.StringFixed(2),
			},
		})
		if err != nil {
			return err
		}
		current.ApplyDecision(decision, requestcontext.Now(ctx))
		if err := st.UpdateProject(ctx, current); err != nil {
			return wrapStoreErr(err, "project")
		}
		published = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementEntity("project", string(published.Status))
	s.logger.InfoContext(ctx, "project publication decided",
		"request_id", requestcontext.RequestID(ctx),
		"project_id", published.ID,
		"status", published.Status,
		"decision", published.Decision.Outcome,
	)
	return published, nil
}

// InvestInput is a pledge into a published project.
type InvestInput struct {
	InvestorID id.UserID
	ProjectID  id.ProjectID
	Amount     decimal.Decimal
}

// Invest records an investment. Approved investments count towards the
// project immediately; escalated ones wait for review.
func (s *Service) Invest(ctx context.Context, in InvestInput) (*models.Investment, error) {
	if err := models.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	account, project, err := s.load(ctx, in.InvestorID, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, account, compliance.GateInvest, map[string]any{
		"project_id": project.ID.String(),
		"amount":     in.Amount.StringFixed(2),
	}); err != nil {
		return nil, err
	}
	if err := project.AcceptsInvestment(); err != nil {
		return nil, err
	}

	var investment *models.Investment
	err = s.tx.RunInTx(ctx, in.ProjectID, func(ctx context.Context, st store.Store) error {
		current, err := st.FindProjectForUpdate(ctx, in.ProjectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		if err := current.AcceptsInvestment(); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		inv, err := models.NewInvestment(id.NewInvestmentID(), current.ID, account.ID, in.Amount, now)
		if err != nil {
			return err
		}
		decision, err := s.compliance.DecideAndRecord(ctx, account, compliance.ApprovalInvestment, compliance.EntitySnapshot{
			ID: inv.ID.String(),
			Fields: map[string]any{
				"project_id": current.ID.String(),
				"amount":     inv.Amount.StringFixed(2),
			},
		})
		if err != nil {
			return err
		}
		if inv.ApplyDecision(decision, now) {
			current.Credit(inv.Amount, now)
			if err := st.UpdateProject(ctx, current); err != nil {
				return wrapStoreErr(err, "project")
			}
		}
		if err := st.CreateInvestment(ctx, inv); err != nil {
			return wrapStoreErr(err, "investment")
		}
		investment = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementEntity("investment", string(investment.Status))
	s.logger.InfoContext(ctx, "investment decided",
		"request_id", requestcontext.RequestID(ctx),
		"investment_id", investment.ID,
		"project_id", investment.ProjectID,
		"amount", investment.Amount.StringFixed(2),
		"status", investment.Status,
	)
	return investment, nil
}

// TransferInput asks for money to leave a project.
type TransferInput struct {
	UserID    id.UserID
	ProjectID id.ProjectID
	Amount    decimal.Decimal
}

// RequestPayout disburses raised funds to the project owner.
func (s *Service) RequestPayout(ctx context.Context, in TransferInput) (*models.Payout, error) {
	return s.requestTransfer(ctx, models.KindPayout, compliance.GatePayout, in)
}

// RequestWithdrawal returns part of an investor's approved stake.
func (s *Service) RequestWithdrawal(ctx context.Context, in TransferInput) (*models.Payout, error) {
	return s.requestTransfer(ctx, models.KindWithdrawal, compliance.GateWithdraw, in)
}

func (s *Service) requestTransfer(ctx context.Context, kind models.PayoutKind, gateKind compliance.GateAction, in TransferInput) (*models.Payout, error) {
	if err := models.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	account, project, err := s.load(ctx, in.UserID, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if kind == models.KindPayout && project.OwnerID != account.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the project owner can request a payout")
	}
	if err := s.gate(ctx, account, gateKind, map[string]any{
		"project_id": project.ID.String(),
		"amount":     in.Amount.StringFixed(2),
	}); err != nil {
		return nil, err
	}

	var payout *models.Payout
	err = s.tx.RunInTx(ctx, in.ProjectID, func(ctx context.Context, st store.Store) error {
		current, err := st.FindProjectForUpdate(ctx, in.ProjectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		if err := s.checkFunds(ctx, st, current, kind, account.ID, in.Amount); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		p, err := models.NewPayout(id.NewPayoutID(), current.ID, account.ID, kind, in.Amount, now)
		if err != nil {
			return err
		}
		decision, err := s.compliance.DecideAndRecord(ctx, account, compliance.ApprovalPayout, compliance.EntitySnapshot{
			ID: p.ID.String(),
			Fields: map[string]any{
				"kind":       string(kind),
				"project_id": current.ID.String(),
				"amount":     p.Amount.StringFixed(2),
			},
		})
		if err != nil {
			return err
		}
		p.ApplyDecision(decision, now)
		if p.Status.HoldsFunds() {
			holdFunds(current, p, now)
			if err := st.UpdateProject(ctx, current); err != nil {
				return wrapStoreErr(err, "project")
			}
		}
		if err := st.CreatePayout(ctx, p); err != nil {
			return wrapStoreErr(err, "payout")
		}
		payout = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementEntity(string(kind), string(payout.Status))
	s.logger.InfoContext(ctx, "transfer request decided",
		"request_id", requestcontext.RequestID(ctx),
		"payout_id", payout.ID,
		"kind", kind,
		"project_id", payout.ProjectID,
		"amount", payout.Amount.StringFixed(2),
		"status", payout.Status,
	)
	if payout.Status == models.PayoutApproved {
		return s.settleOrDefer(ctx, payout), nil
	}
	return payout, nil
}

// SettlePayout retries settlement of an approved payout whose earlier
// settlement did not complete. Transferred and failed payouts are returned
// as they are.
func (s *Service) SettlePayout(ctx context.Context, payoutID id.PayoutID) (*models.Payout, error) {
	p, err := s.store.FindPayout(ctx, payoutID)
	if err != nil {
		return nil, wrapStoreErr(err, "payout")
	}
	switch p.Status {
	case models.PayoutApproved:
		return s.settle(ctx, p)
	case models.PayoutTransferred, models.PayoutFailed:
		return p, nil
	default:
		return nil, dErrors.New(dErrors.CodeConflict, "payout is not approved for transfer")
	}
}

// settleOrDefer settles p and, when the outcome cannot be stored, logs it and
// returns p still approved. The approval is already committed, so the
// settlement is left for SettlePayout or the next review attempt to finish.
func (s *Service) settleOrDefer(ctx context.Context, p *models.Payout) *models.Payout {
	settled, err := s.settle(ctx, p)
	if err == nil {
		return settled
	}
	s.metrics.IncrementTransfer(string(p.Kind), "deferred")
	s.logger.ErrorContext(ctx, "payout settlement deferred",
		"request_id", requestcontext.RequestID(ctx),
		"payout_id", p.ID,
		"kind", p.Kind,
		"error", err,
	)
	return p
}

func (s *Service) checkFunds(ctx context.Context, st store.Store, project *models.Project, kind models.PayoutKind, userID id.UserID, amount decimal.Decimal) error {
	if project.Available().LessThan(amount) {
		return dErrors.New(dErrors.CodeConflict, "amount exceeds the project's available funds")
	}
	if kind != models.KindWithdrawal {
		return nil
	}
	position, err := st.InvestorPosition(ctx, project.ID, userID)
	if err != nil {
		return wrapStoreErr(err, "investment")
	}
	if position.LessThan(amount) {
		return dErrors.New(dErrors.CodeConflict, "amount exceeds the investor's position in the project")
	}
	return nil
}

// settle hands an approved payout to the provider and records the outcome.
// A failed transfer releases the held funds and is reported on the payout,
// not as an error.
func (s *Service) settle(ctx context.Context, p *models.Payout) (*models.Payout, error) {
	ref, transferErr := s.provider.Transfer(ctx, payouts.Instruction{
		PayoutID:  p.ID,
		ProjectID: p.ProjectID,
		UserID:    p.UserID,
		Kind:      string(p.Kind),
		Amount:    p.Amount,
		Currency:  s.currency,
	})

	var settled *models.Payout
	err := s.tx.RunInTx(ctx, p.ProjectID, func(ctx context.Context, st store.Store) error {
		project, err := st.FindProjectForUpdate(ctx, p.ProjectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		current, err := st.FindPayout(ctx, p.ID)
		if err != nil {
			return wrapStoreErr(err, "payout")
		}
		if current.Status != models.PayoutApproved {
			settled = current
			return nil
		}
		now := requestcontext.Now(ctx)
		if transferErr != nil {
			_ = current.MarkFailed(transferErr.Error(), now)
			releaseFunds(project, current, now)
			if err := st.UpdateProject(ctx, project); err != nil {
				return wrapStoreErr(err, "project")
			}
		} else {
			_ = current.MarkTransferred(ref, now)
		}
		if err := st.UpdatePayout(ctx, current); err != nil {
			return wrapStoreErr(err, "payout")
		}
		settled = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transferErr != nil {
		s.metrics.IncrementTransfer(string(p.Kind), "failed")
		s.logger.ErrorContext(ctx, "payout transfer failed",
			"request_id", requestcontext.RequestID(ctx),
			"payout_id", p.ID,
			"kind", p.Kind,
			"error", transferErr,
		)
		return settled, nil
	}
	s.metrics.IncrementTransfer(string(p.Kind), "transferred")
	s.logger.InfoContext(ctx, "payout transferred",
		"request_id", requestcontext.RequestID(ctx),
		"payout_id", p.ID,
		"kind", p.Kind,
		"reference", settled.ProviderReference,
	)
	return settled, nil
}

// load fetches the acting account and the project concurrently.
func (s *Service) load(ctx context.Context, userID id.UserID, projectID id.ProjectID) (*accountmodels.Account, *models.Project, error) {
	var (
		account *accountmodels.Account
		project *models.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.accounts.Get(gctx, userID)
		account = a
		return err
	})
	g.Go(func() error {
		p, err := s.store.FindProject(gctx, projectID)
		if err != nil {
			return wrapStoreErr(err, "project")
		}
		project = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return account, project, nil
}

func (s *Service) gate(ctx context.Context, account *accountmodels.Account, kind compliance.GateAction, fields map[string]any) error {
	verdict, err := s.compliance.Gate(ctx, account, kind, fields)
	if err != nil {
		return err
	}
	if !verdict.Allowed {
		s.metrics.IncrementDenied(string(kind))
		return &compliance.DeniedError{Action: kind, Verdict: verdict}
	}
	return nil
}

func (s *Service) requireProjectOwner(ctx context.Context, projectID id.ProjectID, userID id.UserID) error {
	project, err := s.store.FindProject(ctx, projectID)
	if err != nil {
		return wrapStoreErr(err, "project")
	}
	if project.OwnerID != userID {
		return dErrors.New(dErrors.CodeForbidden, "not a party to this record")
	}
	return nil
}

func holdFunds(project *models.Project, p *models.Payout, now time.Time) {
	if p.Kind == models.KindWithdrawal {
		project.Debit(p.Amount, now)
		return
	}
	project.Reserve(p.Amount, now)
}

func releaseFunds(project *models.Project, p *models.Payout, now time.Time) {
	if p.Kind == models.KindWithdrawal {
		project.Credit(p.Amount, now)
		return
	}
	project.Release(p.Amount, now)
}

func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		de, _ := dErrors.As(err)
		return dErrors.New(dErrors.CodeValidation, de.Message)
	}
	return err
}

func wrapStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, entity+" already exists")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, entity+" store failure")
}
