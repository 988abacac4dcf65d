package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
)

// FundingModel is how backers are repaid.
type FundingModel string

const (
	FundingEquity  FundingModel = "equity"
	FundingRoyalty FundingModel = "royalty"
)

func ParseFundingModel(s string) (FundingModel, error) {
	m := FundingModel(strings.ToLower(strings.TrimSpace(s)))
	if m != FundingEquity && m != FundingRoyalty {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown funding model: "+s)
	}
	return m, nil
}

// ProjectStatus is the publication state of a project.
type ProjectStatus string

const (
	ProjectDraft         ProjectStatus = "draft"
	ProjectPendingReview ProjectStatus = "pending_review"
	ProjectPublished     ProjectStatus = "published"
	ProjectRejected      ProjectStatus = "rejected"
)

// Project is a fundraising campaign. Raised counts approved investments net of
// withdrawals; Disbursed counts payouts reserved or paid to the owner.
type Project struct {
	ID           id.ProjectID         `json:"id"`
	OwnerID      id.UserID            `json:"owner_id"`
	Title        string               `json:"title"`
	Summary      string               `json:"summary"`
	FundingModel FundingModel         `json:"funding_model"`
	Goal         decimal.Decimal      `json:"goal"`
	Raised       decimal.Decimal      `json:"raised"`
	Disbursed    decimal.Decimal      `json:"disbursed"`
	Status       ProjectStatus        `json:"status"`
	Decision     *compliance.Decision `json:"decision,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func NewProject(projectID id.ProjectID, ownerID id.UserID, title, summary string, model FundingModel, goal decimal.Decimal, now time.Time) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "project title cannot be empty")
	}
	if model != FundingEquity && model != FundingRoyalty {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown funding model: "+string(model))
	}
	if !goal.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "funding goal must be positive")
	}
	return &Project{
		ID:           projectID,
		OwnerID:      ownerID,
		Title:        title,
		Summary:      strings.TrimSpace(summary),
		FundingModel: model,
		Goal:         goal.Round(2),
		Raised:       decimal.Zero,
		Disbursed:    decimal.Zero,
		Status:       ProjectDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Available is what can still be paid out or withdrawn.
func (p *Project) Available() decimal.Decimal {
	return p.Raised.Sub(p.Disbursed)
}

// CanSubmitForPublication allows drafts and previously rejected projects.
func (p *Project) CanSubmitForPublication() error {
	switch p.Status {
	case ProjectDraft, ProjectRejected:
		return nil
	case ProjectPendingReview:
		return dErrors.New(dErrors.CodeConflict, "project is already awaiting review")
	default:
		return dErrors.New(dErrors.CodeConflict, "project is already published")
	}
}

// ApplyDecision moves the project according to an auto-approval decision.
func (p *Project) ApplyDecision(d compliance.Decision, now time.Time) {
	p.Decision = &d
	p.Status = projectStatusFor(d.Outcome)
	p.UpdatedAt = now
}

// ApplyReview settles a project that was escalated to a reviewer.
func (p *Project) ApplyReview(approved bool, now time.Time) error {
	if p.Status != ProjectPendingReview {
		return dErrors.New(dErrors.CodeConflict, "project is not awaiting review")
	}
	p.Status = ProjectRejected
	if approved {
		p.Status = ProjectPublished
	}
	p.UpdatedAt = now
	return nil
}

func (p *Project) AcceptsInvestment() error {
	if p.Status != ProjectPublished {
		return dErrors.New(dErrors.CodeConflict, "project is not open for investment")
	}
	return nil
}

func (p *Project) Credit(amount decimal.Decimal, now time.Time) {
	p.Raised = p.Raised.Add(amount)
	p.UpdatedAt = now
}

func (p *Project) Debit(amount decimal.Decimal, now time.Time) {
	p.Raised = p.Raised.Sub(amount)
	p.UpdatedAt = now
}

func (p *Project) Reserve(amount decimal.Decimal, now time.Time) {
	p.Disbursed = p.Disbursed.Add(amount)
	p.UpdatedAt = now
}

func (p *Project) Release(amount decimal.Decimal, now time.Time) {
	p.Disbursed = p.Disbursed.Sub(amount)
	p.UpdatedAt = now
}

func (p *Project) Clone() *Project {
	c := *p
	if p.Decision != nil {
		d := *p.Decision
		c.Decision = &d
	}
	return &c
}

func projectStatusFor(o compliance.Outcome) ProjectStatus {
	switch o {
	case compliance.OutcomeApprove:
		return ProjectPublished
	case compliance.OutcomeEscalate:
		return ProjectPendingReview
	default:
		return ProjectRejected
	}
}
