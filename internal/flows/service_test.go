package flows

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	accountservice "crowdfund/internal/accounts/service"
	accountstore "crowdfund/internal/accounts/store"
	"crowdfund/internal/compliance"
	"crowdfund/internal/countries"
	"crowdfund/internal/marketplace/models"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/requestcontext"
)

type projectTable map[id.ProjectID]*models.Project

func (t projectTable) GetProject(_ context.Context, projectID id.ProjectID) (*models.Project, error) {
	p, ok := t[projectID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
	}
	return p, nil
}

// =============================================================================
// Flow Service Test Suite
// =============================================================================
// Justification for unit tests: prompts must carry the computed verdict and
// generated output must be held to the flow's own rules.

type FlowSuite struct {
	suite.Suite
	ctx      context.Context
	accounts *accountservice.Service
	projects projectTable
	prompts  []string
	reply    func(prompt string) string
	service  *Service
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC))
	table, err := countries.Default()
	s.Require().NoError(err)
	s.accounts, err = accountservice.New(accountstore.NewInMemory(), table, accountservice.WithLogger(quietLogger()))
	s.Require().NoError(err)
	s.projects = projectTable{}
	s.prompts = nil

	provider := ProviderFunc(func(_ context.Context, _ string, prompt string) (string, error) {
		s.prompts = append(s.prompts, prompt)
		return s.reply(prompt), nil
	})
	chain, err := NewChain(provider, []string{"primary"}, 2, WithLogger(quietLogger()))
	s.Require().NoError(err)
	s.service, err = NewService(chain, s.accounts, s.projects, WithServiceLogger(quietLogger()))
	s.Require().NoError(err)
}

func (s *FlowSuite) register(role compliance.Role, country string) id.UserID {
	a, err := s.accounts.Register(s.ctx, accountservice.RegisterInput{
		Email: id.NewUserID().String() + "@example.com", Role: role, Country: country,
	})
	s.Require().NoError(err)
	return a.ID
}

func (s *FlowSuite) addProject(ownerID id.UserID) *models.Project {
	p, err := models.NewProject(id.NewProjectID(), ownerID, "Solar co-op", "Rooftop panels for a village school",
		models.FundingRoyalty, decimal.NewFromInt(25000), requestcontext.Now(s.ctx))
	s.Require().NoError(err)
	s.projects[p.ID] = p
	return p
}

func (s *FlowSuite) TestGeneratePitch() {
	owner := s.register(compliance.RoleOwner, "US")
	project := s.addProject(owner)

	s.Run("retries copy that promises returns", func() {
		answers := []string{
			`{"headline":"Guaranteed return on sunshine","body":"b","highlights":["h"],"call_to_action":"Back us"}`,
			`{"headline":"Power a school","tagline":"Sun for study","body":"b","highlights":["Royalty model"],"call_to_action":"Back us"}`,
		}
		s.reply = func(string) string {
			a := answers[0]
			answers = answers[1:]
			return a
		}
		res, err := s.service.GeneratePitch(s.ctx, PitchInput{OwnerID: owner, ProjectID: project.ID})
		s.Require().NoError(err)
		s.Equal("Power a school", res.Pitch.Headline)
		s.Equal(2, res.Attempts)
		s.Contains(s.prompts[0], "Funding model: royalty")
		s.Contains(s.prompts[0], "Goal: 25000.00")
		s.Contains(s.prompts[0], "Audience: retail investors")
	})

	s.Run("someone else's project", func() {
		other := s.register(compliance.RoleOwner, "US")
		_, err := s.service.GeneratePitch(s.ctx, PitchInput{OwnerID: other, ProjectID: project.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown project", func() {
		_, err := s.service.GeneratePitch(s.ctx, PitchInput{OwnerID: owner, ProjectID: id.NewProjectID()})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *FlowSuite) TestRecommendCompliance() {
	s.Run("denied payout needs a step per missing requirement", func() {
		owner := s.register(compliance.RoleOwner, "NG")
		s.reply = func(string) string {
			if len(s.prompts) == 1 {
				return `{"summary":"Finish verification.","steps":["Pass KYC"],"priority":"high"}`
			}
			return `{"summary":"Finish verification.","steps":["Pass KYC","Upload bank statement","Upload proof of address","Wait for review"],"priority":"high"}`
		}

		res, err := s.service.RecommendCompliance(s.ctx, owner, compliance.GatePayout)
		s.Require().NoError(err)
		s.False(res.Verdict.Allowed)
		s.Equal(compliance.ReasonFallbackIncomplete, res.Verdict.Reason)
		s.Len(res.Verdict.MissingRequirements, 4)
		s.Equal(compliance.OutcomeReject, res.Decision.Outcome)
		s.Equal(compliance.ReasonPayoutBlocked, res.Decision.Reason)
		s.Len(res.Recommendation.Steps, 4)
		s.Equal(2, res.Attempts)

		prompt := s.prompts[0]
		s.Contains(prompt, "Verification mode: fallback")
		s.Contains(prompt, "Allowed: false")
		s.Contains(prompt, "Missing: "+string(compliance.RequirementManualReview))
	})

	s.Run("allowed action", func() {
		s.prompts = nil
		investor := s.register(compliance.RoleInvestor, "GB")
		_, err := s.accounts.RecordKYCResult(s.ctx, investor, compliance.KYCPassed)
		s.Require().NoError(err)
		s.reply = func(string) string {
			return `{"summary":"You can invest.","steps":[],"priority":"low"}`
		}

		res, err := s.service.RecommendCompliance(s.ctx, investor, compliance.GateInvest)
		s.Require().NoError(err)
		s.True(res.Verdict.Allowed)
		s.Equal(compliance.OutcomeApprove, res.Decision.Outcome)
		s.True(strings.Contains(s.prompts[0], "Role: investor"))
	})

	s.Run("unknown action", func() {
		_, err := s.service.RecommendCompliance(s.ctx, id.NewUserID(), "transfer")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *FlowSuite) TestGenerateLegalDocument() {
	owner := s.register(compliance.RoleOwner, "US")
	project := s.addProject(owner)

	s.Run("risk disclosure needs a risk section", func() {
		s.prompts = nil
		answers := []string{
			`{"title":"Disclosure","sections":[{"heading":"About us","body":"We install panels."}],"disclaimer":"Draft for counsel."}`,
			`{"title":"Disclosure","sections":[{"heading":"Risk of loss","body":"You can lose all of your money."}],"disclaimer":"Draft for counsel."}`,
		}
		s.reply = func(string) string {
			a := answers[0]
			answers = answers[1:]
			return a
		}
		res, err := s.service.GenerateLegalDocument(s.ctx, LegalDocumentInput{OwnerID: owner, ProjectID: project.ID, Kind: DocumentRiskDisclosure})
		s.Require().NoError(err)
		s.Equal(DocumentRiskDisclosure, res.Kind)
		s.Equal("Risk of loss", res.Document.Sections[0].Heading)
		s.Equal(2, res.Attempts)
		s.Contains(s.prompts[0], "Document: risk disclosure")
	})

	s.Run("investment terms name the funding model", func() {
		s.prompts = nil
		s.reply = func(string) string {
			if len(s.prompts) == 1 {
				return `{"title":"Terms","sections":[{"heading":"Terms","body":"Backers share in revenue."}],"disclaimer":"Draft."}`
			}
			return `{"title":"Terms","sections":[{"heading":"Terms","body":"Backers receive a royalty on revenue."}],"disclaimer":"Draft."}`
		}
		res, err := s.service.GenerateLegalDocument(s.ctx, LegalDocumentInput{OwnerID: owner, ProjectID: project.ID, Kind: DocumentInvestmentTerms})
		s.Require().NoError(err)
		s.Equal(2, res.Attempts)
		s.Contains(s.prompts[0], "Describe the royalty funding model")
	})

	s.Run("drafts that promise returns are refused", func() {
		s.reply = func(string) string {
			return `{"title":"Risk-free income","sections":[{"heading":"Risk","body":"none"}],"disclaimer":"Draft."}`
		}
		_, err := s.service.GenerateLegalDocument(s.ctx, LegalDocumentInput{OwnerID: owner, ProjectID: project.ID, Kind: DocumentRiskDisclosure})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("someone else's project", func() {
		other := s.register(compliance.RoleOwner, "US")
		_, err := s.service.GenerateLegalDocument(s.ctx, LegalDocumentInput{OwnerID: other, ProjectID: project.ID, Kind: DocumentRiskDisclosure})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown kind", func() {
		_, err := s.service.GenerateLegalDocument(s.ctx, LegalDocumentInput{OwnerID: owner, ProjectID: project.ID, Kind: "prospectus"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *FlowSuite) TestProjectFinancials() {
	owner := s.register(compliance.RoleOwner, "US")
	project := s.addProject(owner)

	s.Run("one period per requested year", func() {
		s.prompts = nil
		s.reply = func(string) string {
			if len(s.prompts) == 1 {
				return `{"summary":"Estimates only.","periods":[{"label":"Year 1","revenue":1000,"expenses":800}],"assumptions":["Two schools sign up"]}`
			}
			return `{"summary":"Estimates only.","periods":[{"label":"Year 1","revenue":1000,"expenses":800},{"label":"Year 2","revenue":"2400.50","expenses":1100}],"assumptions":["Two schools sign up"]}`
		}
		res, err := s.service.ProjectFinancials(s.ctx, ProjectionInput{OwnerID: owner, ProjectID: project.ID, Years: 2})
		s.Require().NoError(err)
		s.Equal(2, res.Years)
		s.Len(res.Projection.Periods, 2)
		s.True(res.Projection.Periods[1].Revenue.Equal(decimal.RequireFromString("2400.5")))
		s.Equal(2, res.Attempts)
		s.Contains(s.prompts[0], "exactly 2 annual periods")
		s.Contains(s.prompts[0], "Raised: 0.00")
	})

	s.Run("negative amounts are refused", func() {
		s.reply = func(string) string {
			return `{"summary":"s","periods":[{"label":"Y1","revenue":-5,"expenses":0},{"label":"Y2","revenue":1,"expenses":0},{"label":"Y3","revenue":1,"expenses":0}],"assumptions":["a"]}`
		}
		_, err := s.service.ProjectFinancials(s.ctx, ProjectionInput{OwnerID: owner, ProjectID: project.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("horizon is bounded", func() {
		_, err := s.service.ProjectFinancials(s.ctx, ProjectionInput{OwnerID: owner, ProjectID: project.ID, Years: MaxProjectionYears + 1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *FlowSuite) TestNewService() {
	_, err := NewService(nil, s.accounts, s.projects)
	s.Error(err)
}
