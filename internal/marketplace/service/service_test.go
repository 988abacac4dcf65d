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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	accountmodels "crowdfund/internal/accounts/models"
	accountservice "crowdfund/internal/accounts/service"
	accountstore "crowdfund/internal/accounts/store"
	"crowdfund/internal/compliance"
	complianceservice "crowdfund/internal/compliance/service"
	"crowdfund/internal/countries"
	"crowdfund/internal/events"
	"crowdfund/internal/marketplace/metrics"
	"crowdfund/internal/marketplace/models"
	"crowdfund/internal/marketplace/service/mocks"
	"crowdfund/internal/marketplace/store"
	"crowdfund/internal/payouts"
	reviewmodels "crowdfund/internal/review/models"
	reviewservice "crowdfund/internal/review/service"
	reviewstore "crowdfund/internal/review/store"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Accounts,Compliance,StoreTx,PayoutProvider

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// Marketplace Service Test Suite
// =============================================================================
// Justification for unit tests: these run the real gatekeeper, auto-approver,
// recorder and review queue against in-memory stores so the entity state,
// fund accounting and review hand-off are checked together.

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	accounts *accountservice.Service
	events   *events.Memory
	reviews  *reviewservice.Service
	sandbox  *payouts.Sandbox
	store    *store.InMemoryStore
	tx       *settleFailingTx
	metrics  *metrics.Metrics
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table, err := countries.Default()
	s.Require().NoError(err)

	s.accounts, err = accountservice.New(accountstore.NewInMemory(), table, accountservice.WithLogger(logger))
	s.Require().NoError(err)
	s.reviews, err = reviewservice.New(reviewstore.NewInMemory(), reviewservice.WithLogger(logger))
	s.Require().NoError(err)
	s.events = events.NewMemory()
	recorder := complianceservice.NewRecorder(s.events, s.reviews, complianceservice.WithRecorderLogger(logger))
	checker, err := complianceservice.New(s.accounts, recorder, complianceservice.WithLogger(logger))
	s.Require().NoError(err)

	s.store = store.NewInMemory()
	s.sandbox = payouts.NewSandbox(logger)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.tx = &settleFailingTx{next: store.NewInMemoryTx(s.store)}
	s.service, err = New(s.store, s.tx, s.accounts, checker, s.sandbox,
		WithLogger(logger), WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.reviews.RegisterResolver(s.service, s.service.ReviewActions()...)
}

func (s *ServiceSuite) user(role compliance.Role, country string, kyc compliance.KYCStatus) *accountmodels.Account {
	a, err := s.accounts.Register(s.ctx, accountservice.RegisterInput{
		Email:   id.NewUserID().String() + "@example.com",
		Role:    role,
		Country: country,
	})
	s.Require().NoError(err)
	if kyc != compliance.KYCNotStarted {
		a, err = s.accounts.RecordKYCResult(s.ctx, a.ID, kyc)
		s.Require().NoError(err)
	}
	return a
}

func (s *ServiceSuite) publishedProject(owner *accountmodels.Account) *models.Project {
	p, err := s.service.CreateProject(s.ctx, CreateProjectInput{
		OwnerID:      owner.ID,
		Title:        "Community brewery",
		FundingModel: models.FundingEquity,
		Goal:         decimal.NewFromInt(10000),
	})
	s.Require().NoError(err)
	p, err = s.service.PublishProject(s.ctx, owner.ID, p.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.ProjectPublished, p.Status)
	return p
}

func (s *ServiceSuite) invest(investor *accountmodels.Account, p *models.Project, amount int64) *models.Investment {
	inv, err := s.service.Invest(s.ctx, InvestInput{InvestorID: investor.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(amount)})
	s.Require().NoError(err)
	return inv
}

func (s *ServiceSuite) project(projectID id.ProjectID) *models.Project {
	p, err := s.service.GetProject(s.ctx, projectID)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) resolveOnly(action compliance.ApprovalAction, outcome reviewmodels.Outcome) {
	open, err := s.reviews.ListOpen(s.ctx, 0)
	s.Require().NoError(err)
	for _, item := range open {
		if item.Action != action {
			continue
		}
		_, err := s.reviews.Resolve(s.ctx, reviewservice.ResolveInput{ReviewID: item.ID, Outcome: outcome, Reviewer: "ops@example.com"})
		s.Require().NoError(err)
		return
	}
	s.Failf("no open review", "action %s", action)
}

// settleFailingTx fails the payout write that records a transfer outcome
// while failSettle is set, as a store outage between Transfer and commit would.
type settleFailingTx struct {
	next       *store.InMemoryTx
	failSettle bool
}

func (t *settleFailingTx) RunInTx(ctx context.Context, projectID id.ProjectID, fn func(ctx context.Context, st store.Store) error) error {
	return t.next.RunInTx(ctx, projectID, func(ctx context.Context, st store.Store) error {
		return fn(ctx, &settleFailingStore{Store: st, tx: t})
	})
}

type settleFailingStore struct {
	store.Store
	tx *settleFailingTx
}

func (s *settleFailingStore) UpdatePayout(ctx context.Context, p *models.Payout) error {
	if s.tx.failSettle && (p.Status == models.PayoutTransferred || p.Status == models.PayoutFailed) {
		return errors.New("connection reset by peer")
	}
	return s.Store.UpdatePayout(ctx, p)
}

func deniedVerdict(err error) (compliance.Verdict, bool) {
	var denied *compliance.DeniedError
	if errors.As(err, &denied) {
		return denied.Verdict, true
	}
	return compliance.Verdict{}, false
}

// =============================================================================
// Projects
// =============================================================================

func (s *ServiceSuite) TestCreateProject() {
	s.Run("investors cannot create projects", func() {
		investor := s.user(compliance.RoleInvestor, "US", compliance.KYCPassed)
		_, err := s.service.CreateProject(s.ctx, CreateProjectInput{
			OwnerID: investor.ID, Title: "x", FundingModel: models.FundingEquity, Goal: decimal.NewFromInt(1),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("goal must be positive", func() {
		owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
		_, err := s.service.CreateProject(s.ctx, CreateProjectInput{
			OwnerID: owner.ID, Title: "x", FundingModel: models.FundingRoyalty, Goal: decimal.NewFromInt(-5),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestPublishProject() {
	s.Run("owner without kyc is denied with the verdict", func() {
		owner := s.user(compliance.RoleOwner, "GB", compliance.KYCPending)
		p, err := s.service.CreateProject(s.ctx, CreateProjectInput{
			OwnerID: owner.ID, Title: "Bikes", FundingModel: models.FundingEquity, Goal: decimal.NewFromInt(500),
		})
		s.Require().NoError(err)

		_, err = s.service.PublishProject(s.ctx, owner.ID, p.ID)
		verdict, ok := deniedVerdict(err)
		s.Require().True(ok, "expected a deny, got %v", err)
		s.Equal(compliance.ReasonKYCNotPassed, verdict.Reason)
		s.Equal(models.ProjectDraft, s.project(p.ID).Status)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Denied.WithLabelValues("publish_project")))
	})

	s.Run("clean owner publishes and the decision is published", func() {
		owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
		p := s.publishedProject(owner)
		s.Require().NotNil(p.Decision)
		s.Equal(compliance.OutcomeApprove, p.Decision.Outcome)

		published := s.events.Events()
		last := published[len(published)-1]
		s.Equal(compliance.ApprovalProject, last.Action)
		s.Equal(p.ID.String(), last.EntityID)

		_, err := s.service.PublishProject(s.ctx, owner.ID, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("someone else's project", func() {
		owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
		other := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
		p, err := s.service.CreateProject(s.ctx, CreateProjectInput{
			OwnerID: owner.ID, Title: "Mine", FundingModel: models.FundingEquity, Goal: decimal.NewFromInt(10),
		})
		s.Require().NoError(err)
		_, err = s.service.PublishProject(s.ctx, other.ID, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unrecorded decision leaves the draft untouched", func() {
		owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
		p, err := s.service.CreateProject(s.ctx, CreateProjectInput{
			OwnerID: owner.ID, Title: "Flaky", FundingModel: models.FundingEquity, Goal: decimal.NewFromInt(10),
		})
		s.Require().NoError(err)

		s.events.FailWith(errors.New("broker down"))
		defer s.events.FailWith(nil)
		_, err = s.service.PublishProject(s.ctx, owner.ID, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(models.ProjectDraft, s.project(p.ID).Status)
	})

	s.Run("owner who moved to a fallback country waits for review", func() {
		owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
		_, err := s.accounts.ChangeCountry(s.ctx, owner.ID, "NG")
		s.Require().NoError(err)

		p, err := s.service.CreateProject(s.ctx, CreateProjectInput{
			OwnerID: owner.ID, Title: "Lagos", FundingModel: models.FundingRoyalty, Goal: decimal.NewFromInt(900),
		})
		s.Require().NoError(err)
		p, err = s.service.PublishProject(s.ctx, owner.ID, p.ID)
		s.Require().NoError(err)
		s.Equal(models.ProjectPendingReview, p.Status)

		s.resolveOnly(compliance.ApprovalProject, reviewmodels.OutcomeApproved)
		s.Equal(models.ProjectPublished, s.project(p.ID).Status)
	})
}

// =============================================================================
// Investments
// =============================================================================

func (s *ServiceSuite) TestInvest() {
	owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
	p := s.publishedProject(owner)

	s.Run("approved investment counts immediately", func() {
		investor := s.user(compliance.RoleInvestor, "CA", compliance.KYCPassed)
		inv := s.invest(investor, p, 250)
		s.Equal(models.InvestmentApproved, inv.Status)
		s.Equal("250", s.project(p.ID).Raised.String())
	})

	s.Run("escalated investment waits for review", func() {
		investor := s.user(compliance.RoleInvestor, "KE", compliance.KYCPassed)
		inv := s.invest(investor, p, 100)
		s.Equal(models.InvestmentPendingReview, inv.Status)
		s.Equal("250", s.project(p.ID).Raised.String())

		s.resolveOnly(compliance.ApprovalInvestment, reviewmodels.OutcomeApproved)
		s.Equal("350", s.project(p.ID).Raised.String())

		got, err := s.service.GetInvestment(s.ctx, investor.ID, inv.ID)
		s.Require().NoError(err)
		s.Equal(models.InvestmentApproved, got.Status)
	})

	s.Run("flagged investor is rejected outright", func() {
		investor := s.user(compliance.RoleInvestor, "US", compliance.KYCPassed)
		_, err := s.accounts.UpdateRisk(s.ctx, investor.ID, accountmodels.RiskUpdate{Score: 5, Tier: compliance.RiskLow, Flags: []string{"sanctions_hit"}})
		s.Require().NoError(err)
		inv := s.invest(investor, p, 40)
		s.Equal(models.InvestmentRejected, inv.Status)
		s.Equal(compliance.ReasonHighRisk, inv.Decision.Reason)
		s.Equal("350", s.project(p.ID).Raised.String())
	})

	s.Run("owners cannot invest", func() {
		_, err := s.service.Invest(s.ctx, InvestInput{InvestorID: owner.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(5)})
		verdict, ok := deniedVerdict(err)
		s.Require().True(ok)
		s.Equal(compliance.ReasonInvalidRole, verdict.Reason)
	})

	s.Run("draft projects do not accept investment", func() {
		draft, err := s.service.CreateProject(s.ctx, CreateProjectInput{
			OwnerID: owner.ID, Title: "Later", FundingModel: models.FundingEquity, Goal: decimal.NewFromInt(10),
		})
		s.Require().NoError(err)
		investor := s.user(compliance.RoleInvestor, "US", compliance.KYCPassed)
		_, err = s.service.Invest(s.ctx, InvestInput{InvestorID: investor.ID, ProjectID: draft.ID, Amount: decimal.NewFromInt(5)})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("amount is validated first", func() {
		_, err := s.service.Invest(s.ctx, InvestInput{InvestorID: owner.ID, ProjectID: p.ID, Amount: decimal.RequireFromString("0.001")})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown project", func() {
		investor := s.user(compliance.RoleInvestor, "US", compliance.KYCPassed)
		_, err := s.service.Invest(s.ctx, InvestInput{InvestorID: investor.ID, ProjectID: id.NewProjectID(), Amount: decimal.NewFromInt(5)})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Payouts and withdrawals
// =============================================================================

func (s *ServiceSuite) TestPayouts() {
	owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
	p := s.publishedProject(owner)
	investor := s.user(compliance.RoleInvestor, "US", compliance.KYCPassed)
	s.invest(investor, p, 1000)

	s.Run("approved payout is transferred", func() {
		payout, err := s.service.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(300)})
		s.Require().NoError(err)
		s.Equal(models.PayoutTransferred, payout.Status)
		s.Equal("sbx_"+payout.ID.String(), payout.ProviderReference)
		s.Equal("300", s.project(p.ID).Disbursed.String())
		s.Len(s.sandbox.Transfers(), 1)
	})

	s.Run("failed transfer releases the funds", func() {
		s.sandbox.FailWith(errors.New("account closed"))
		defer s.sandbox.FailWith(nil)

		payout, err := s.service.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(100)})
		s.Require().NoError(err)
		s.Equal(models.PayoutFailed, payout.Status)
		s.Contains(payout.FailureReason, "account closed")
		s.Equal("300", s.project(p.ID).Disbursed.String())
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Transfers.WithLabelValues("payout", "failed")))
	})

	s.Run("cannot exceed available funds", func() {
		_, err := s.service.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(701)})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("only the owner is paid out", func() {
		_, err := s.service.RequestPayout(s.ctx, TransferInput{UserID: investor.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(1)})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("investor withdraws within their position", func() {
		w, err := s.service.RequestWithdrawal(s.ctx, TransferInput{UserID: investor.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(200)})
		s.Require().NoError(err)
		s.Equal(models.PayoutTransferred, w.Status)
		s.Equal(models.KindWithdrawal, w.Kind)
		s.Equal("800", s.project(p.ID).Raised.String())

		_, err = s.service.RequestWithdrawal(s.ctx, TransferInput{UserID: investor.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(801)})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		got, err := s.service.GetPayout(s.ctx, owner.ID, w.ID)
		s.Require().NoError(err)
		s.Equal(w.ID, got.ID)

		stranger := s.user(compliance.RoleInvestor, "US", compliance.KYCPassed)
		_, err = s.service.GetPayout(s.ctx, stranger.ID, w.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// =============================================================================
// Settlement retries
// =============================================================================

func (s *ServiceSuite) escalatedPayout(amount int64) (*accountmodels.Account, *models.Project, *models.Payout) {
	owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
	p := s.publishedProject(owner)
	s.invest(s.user(compliance.RoleInvestor, "US", compliance.KYCPassed), p, 1000)
	_, err := s.accounts.RecordKYCResult(s.ctx, owner.ID, compliance.KYCPending)
	s.Require().NoError(err)

	payout, err := s.service.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(amount)})
	s.Require().NoError(err)
	s.Require().Equal(models.PayoutPendingReview, payout.Status)
	return owner, p, payout
}

func (s *ServiceSuite) TestSettlementFailureAfterReviewApproval() {
	owner, p, payout := s.escalatedPayout(300)

	s.tx.failSettle = true
	s.resolveOnly(compliance.ApprovalPayout, reviewmodels.OutcomeApproved)

	got, err := s.service.GetPayout(s.ctx, owner.ID, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.PayoutApproved, got.Status, "approval stands while the outcome is unrecorded")
	s.Len(s.sandbox.Transfers(), 1)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Transfers.WithLabelValues("payout", "deferred")))
	open, err := s.reviews.ListOpen(s.ctx, 0)
	s.Require().NoError(err)
	s.Empty(open, "the review item is resolved, not reopened")

	s.tx.failSettle = false
	settled, err := s.service.SettlePayout(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.PayoutTransferred, settled.Status)
	s.Equal("sbx_"+payout.ID.String(), settled.ProviderReference)
	s.Len(s.sandbox.Transfers(), 1, "the retry does not move the money twice")
	s.Equal("300", s.project(p.ID).Disbursed.String())

	again, err := s.service.SettlePayout(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.PayoutTransferred, again.Status)
}

func (s *ServiceSuite) TestReviewRetryOnApprovedPayout() {
	owner, _, payout := s.escalatedPayout(120)

	// An earlier attempt committed the approval and then failed.
	s.Require().NoError(s.tx.RunInTx(s.ctx, payout.ProjectID, func(ctx context.Context, st store.Store) error {
		current, err := st.FindPayout(ctx, payout.ID)
		if err != nil {
			return err
		}
		if err := current.ApplyReview(true, requestcontext.Now(ctx)); err != nil {
			return err
		}
		return st.UpdatePayout(ctx, current)
	}))

	s.resolveOnly(compliance.ApprovalPayout, reviewmodels.OutcomeApproved)

	got, err := s.service.GetPayout(s.ctx, owner.ID, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.PayoutTransferred, got.Status)
}

func (s *ServiceSuite) TestSettlementFailureOnDirectPayout() {
	owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
	p := s.publishedProject(owner)
	s.invest(s.user(compliance.RoleInvestor, "US", compliance.KYCPassed), p, 500)

	s.tx.failSettle = true
	payout, err := s.service.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(50)})
	s.Require().NoError(err, "the committed approval is returned, not a server error")
	s.Equal(models.PayoutApproved, payout.Status)

	s.tx.failSettle = false
	settled, err := s.service.SettlePayout(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.PayoutTransferred, settled.Status)
}

func (s *ServiceSuite) TestSettlePayoutNeedsApproval() {
	_, _, payout := s.escalatedPayout(10)
	_, err := s.service.SettlePayout(s.ctx, payout.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.service.SettlePayout(s.ctx, id.NewPayoutID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestFallbackOwnerPayoutIsDenied() {
	owner := s.user(compliance.RoleOwner, "NG", compliance.KYCPassed)
	_, err := s.accounts.MarkDocumentUploaded(s.ctx, owner.ID, accountmodels.DocumentBankStatement)
	s.Require().NoError(err)

	p, err := s.service.CreateProject(s.ctx, CreateProjectInput{
		OwnerID: owner.ID, Title: "Market stall", FundingModel: models.FundingRoyalty, Goal: decimal.NewFromInt(100),
	})
	s.Require().NoError(err)

	_, err = s.service.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: p.ID, Amount: decimal.NewFromInt(1)})
	verdict, ok := deniedVerdict(err)
	s.Require().True(ok)
	s.Equal(compliance.ModeFallback, verdict.Mode)
	s.Equal([]compliance.Requirement{compliance.RequirementProofOfAddress, compliance.RequirementManualReview}, verdict.MissingRequirements)
	s.Empty(s.sandbox.Transfers())
}

// =============================================================================
// Collaborator failures (mocked)
// =============================================================================

func (s *ServiceSuite) TestCollaboratorFailures() {
	ctrl := gomock.NewController(s.T())
	accounts := mocks.NewMockAccounts(ctrl)
	gate := mocks.NewMockCompliance(ctrl)
	tx := mocks.NewMockStoreTx(ctrl)
	provider := mocks.NewMockPayoutProvider(ctrl)
	svc, err := New(s.store, tx, accounts, gate, provider)
	s.Require().NoError(err)

	owner := s.user(compliance.RoleOwner, "US", compliance.KYCPassed)
	project := s.publishedProject(owner)

	s.Run("gate errors stop before the transaction", func() {
		accounts.EXPECT().Get(gomock.Any(), owner.ID).Return(owner, nil)
		gate.EXPECT().Gate(gomock.Any(), owner, compliance.GatePayout, gomock.Any()).
			Return(compliance.Verdict{}, dErrors.New(dErrors.CodeInternal, "gatekeeper input invalid"))

		_, err := svc.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: project.ID, Amount: decimal.NewFromInt(1)})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("transaction failures surface unchanged", func() {
		accounts.EXPECT().Get(gomock.Any(), owner.ID).Return(owner, nil)
		gate.EXPECT().Gate(gomock.Any(), owner, compliance.GatePayout, gomock.Any()).
			Return(compliance.Verdict{Allowed: true, Mode: compliance.ModeNormal}, nil)
		tx.EXPECT().RunInTx(gomock.Any(), project.ID, gomock.Any()).
			Return(dErrors.New(dErrors.CodeUnavailable, "transaction timed out"))

		_, err := svc.RequestPayout(s.ctx, TransferInput{UserID: owner.ID, ProjectID: project.ID, Amount: decimal.NewFromInt(1)})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, nil, nil, nil, nil)
	s.Error(err)
}
