package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	accountmodels "crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/internal/marketplace/models"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/validation"
	"crowdfund/pkg/requestcontext"
)

const (
	FlowPitch          = "pitch"
	FlowRecommendation = "compliance_recommendation"
)

// Phrases a pitch must never contain.
var bannedPitchPhrases = []string{"guaranteed return", "risk-free", "risk free", "no risk"}

type Accounts interface {
	Get(ctx context.Context, userID id.UserID) (*accountmodels.Account, error)
}

type Projects interface {
	GetProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error)
}

// Service runs the generator flows.
type Service struct {
	chain    *Chain
	accounts Accounts
	projects Projects
	logger   *slog.Logger
}

type Option func(*Service)

func WithServiceLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(chain *Chain, accounts Accounts, projects Projects, opts ...Option) (*Service, error) {
	switch {
	case chain == nil:
		return nil, errors.New("flow chain is required")
	case accounts == nil:
		return nil, errors.New("accounts are required")
	case projects == nil:
		return nil, errors.New("projects are required")
	}
	s := &Service{chain: chain, accounts: accounts, projects: projects, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Pitch is marketing copy for a project page.
type Pitch struct {
	Headline     string   `json:"headline" validate:"required,max=120"`
	Tagline      string   `json:"tagline" validate:"max=200"`
	Body         string   `json:"body" validate:"required,max=4000"`
	Highlights   []string `json:"highlights" validate:"min=1,max=5,dive,required,max=200"`
	CallToAction string   `json:"call_to_action" validate:"required,max=200"`
}

func (p *Pitch) Validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}
	return rejectReturnPromises("pitch", append([]string{p.Headline, p.Tagline, p.Body, p.CallToAction}, p.Highlights...)...)
}

type PitchInput struct {
	OwnerID   id.UserID
	ProjectID id.ProjectID
	Audience  string
}

type PitchResult struct {
	ProjectID id.ProjectID `json:"project_id"`
	Pitch     *Pitch       `json:"pitch"`
	Result
}

// GeneratePitch writes marketing copy for the caller's own project.
func (s *Service) GeneratePitch(ctx context.Context, in PitchInput) (*PitchResult, error) {
	project, err := s.ownedProject(ctx, in.OwnerID, in.ProjectID, "its pitch")
	if err != nil {
		return nil, err
	}

	pitch, res, err := Generate[Pitch](ctx, s.chain, FlowPitch, pitchPrompt(project, in.Audience), nil)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "pitch generated",
		"request_id", requestcontext.RequestID(ctx),
		"project_id", project.ID,
		"model", res.Model,
		"attempts", res.Attempts,
	)
	return &PitchResult{ProjectID: project.ID, Pitch: pitch, Result: res}, nil
}

// ownedProject loads a project the caller owns; what names the output in the
// forbidden message.
func (s *Service) ownedProject(ctx context.Context, ownerID id.UserID, projectID id.ProjectID, what string) (*models.Project, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the project owner can generate "+what)
	}
	return project, nil
}

// Recommendation explains what a user must do before an action can go ahead.
type Recommendation struct {
	Summary  string   `json:"summary" validate:"required,max=1000"`
	Steps    []string `json:"steps" validate:"max=8,dive,required,max=300"`
	Priority string   `json:"priority" validate:"required,oneof=low medium high"`
}

func (r *Recommendation) Validate() error {
	return validation.Struct(r)
}

type RecommendationResult struct {
	UserID         id.UserID             `json:"user_id"`
	Action         compliance.GateAction `json:"action"`
	Verdict        compliance.Verdict    `json:"verdict"`
	Decision       compliance.Decision   `json:"decision"`
	Recommendation *Recommendation       `json:"recommendation"`
	Result
}

// approvalFor maps a gated action onto the auto-approval rule set it feeds.
var approvalFor = map[compliance.GateAction]compliance.ApprovalAction{
	compliance.GateInvest:         compliance.ApprovalInvestment,
	compliance.GatePublishProject: compliance.ApprovalProject,
	compliance.GatePayout:         compliance.ApprovalPayout,
	compliance.GateWithdraw:       compliance.ApprovalPayout,
}

// RecommendCompliance evaluates the rules for action and asks the model to
// explain the outcome. The verdict and decision are computed here and are
// never taken from the model. A denied verdict needs at least one step per
// missing requirement.
func (s *Service) RecommendCompliance(ctx context.Context, userID id.UserID, action compliance.GateAction) (*RecommendationResult, error) {
	approval, ok := approvalFor[action]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown gate action: "+string(action))
	}
	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	verdict, err := compliance.EvaluateGatekeeper(account.VerificationState(), compliance.ActionRequest{Kind: action, Role: account.Role})
	if err != nil {
		return nil, err
	}
	decision, err := compliance.DecideAutoApproval(account.RiskProfile(), approval, compliance.EntitySnapshot{})
	if err != nil {
		return nil, err
	}

	check := func(r *Recommendation) error {
		if len(r.Steps) < len(verdict.MissingRequirements) {
			return fmt.Errorf("recommendation has %d steps for %d missing requirements", len(r.Steps), len(verdict.MissingRequirements))
		}
		return nil
	}
	rec, res, err := Generate[Recommendation](ctx, s.chain, FlowRecommendation, recommendationPrompt(account, action, verdict, decision), check)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "compliance recommendation generated",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"action", action,
		"allowed", verdict.Allowed,
		"model", res.Model,
		"attempts", res.Attempts,
	)
	return &RecommendationResult{
		UserID:         userID,
		Action:         action,
		Verdict:        verdict,
		Decision:       decision,
		Recommendation: rec,
		Result:         res,
	}, nil
}

func pitchPrompt(p *models.Project, audience string) string {
	if strings.TrimSpace(audience) == "" {
		audience = "retail investors"
	}
	var b strings.Builder
	b.WriteString("You write crowdfunding campaign copy. Reply with a single JSON object with keys ")
	b.WriteString(`"headline", "tagline", "body", "highlights" (1-5 strings) and "call_to_action". `)
	b.WriteString("Never promise returns or describe the investment as safe.\n\n")
	writeProject(&b, p)
	fmt.Fprintf(&b, "Audience: %s\n", audience)
	return b.String()
}

func recommendationPrompt(a *accountmodels.Account, action compliance.GateAction, v compliance.Verdict, d compliance.Decision) string {
	var b strings.Builder
	b.WriteString("You are a compliance assistant for a crowdfunding platform. Reply with a single JSON object with keys ")
	b.WriteString(`"summary", "steps" (ordered strings) and "priority" (low, medium or high). `)
	b.WriteString("Explain the outcome below to the user. Do not change or contradict it.\n\n")
	fmt.Fprintf(&b, "Role: %s\nCountry: %s\nAction: %s\n", a.Role, a.Country, action)
	fmt.Fprintf(&b, "Verification mode: %s\nAllowed: %t\nReason: %s\n", v.Mode, v.Allowed, v.Reason)
	if v.RequiredAction != "" {
		fmt.Fprintf(&b, "Required action: %s\n", v.RequiredAction)
	}
	for _, r := range v.MissingRequirements {
		fmt.Fprintf(&b, "Missing: %s\n", r)
	}
	fmt.Fprintf(&b, "Auto-approval outcome: %s (%s)\n", d.Outcome, d.Reason)
	return b.String()
}
