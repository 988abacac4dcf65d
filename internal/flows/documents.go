package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"crowdfund/internal/marketplace/models"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/validation"
	"crowdfund/pkg/requestcontext"
)

const (
	FlowLegalDocument = "legal_document"
	FlowProjection    = "financial_projection"
)

const (
	DefaultProjectionYears = 3
	MaxProjectionYears     = 5
)

// LegalDocumentKind names a draft the owner can request for a campaign.
type LegalDocumentKind string

const (
	DocumentRiskDisclosure  LegalDocumentKind = "risk_disclosure"
	DocumentInvestmentTerms LegalDocumentKind = "investment_terms"
)

func ParseLegalDocumentKind(s string) (LegalDocumentKind, error) {
	switch k := LegalDocumentKind(strings.ToLower(strings.TrimSpace(s))); k {
	case DocumentRiskDisclosure, DocumentInvestmentTerms:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown legal document kind: "+s)
}

type LegalSection struct {
	Heading string `json:"heading" validate:"required,max=200"`
	Body    string `json:"body" validate:"required,max=4000"`
}

// LegalDocument is a draft for counsel to review, never a final filing.
type LegalDocument struct {
	Title      string         `json:"title" validate:"required,max=200"`
	Sections   []LegalSection `json:"sections" validate:"min=1,max=12,dive"`
	Disclaimer string         `json:"disclaimer" validate:"required,max=1000"`
}

func (d *LegalDocument) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	parts := []string{d.Title, d.Disclaimer}
	for _, sec := range d.Sections {
		parts = append(parts, sec.Heading, sec.Body)
	}
	return rejectReturnPromises("legal document", parts...)
}

type LegalDocumentInput struct {
	OwnerID   id.UserID
	ProjectID id.ProjectID
	Kind      LegalDocumentKind
}

type LegalDocumentResult struct {
	ProjectID id.ProjectID      `json:"project_id"`
	Kind      LegalDocumentKind `json:"kind"`
	Document  *LegalDocument    `json:"document"`
	Result
}

// GenerateLegalDocument drafts a campaign document for the caller's own
// project. A risk disclosure needs a section about risk; investment terms
// must name the project's funding model.
func (s *Service) GenerateLegalDocument(ctx context.Context, in LegalDocumentInput) (*LegalDocumentResult, error) {
	if _, err := ParseLegalDocumentKind(string(in.Kind)); err != nil {
		return nil, err
	}
	project, err := s.ownedProject(ctx, in.OwnerID, in.ProjectID, "legal documents")
	if err != nil {
		return nil, err
	}

	check := func(d *LegalDocument) error {
		switch in.Kind {
		case DocumentRiskDisclosure:
			for _, sec := range d.Sections {
				if strings.Contains(strings.ToLower(sec.Heading), "risk") {
					return nil
				}
			}
			return fmt.Errorf("risk disclosure has no risk section")
		case DocumentInvestmentTerms:
			model := string(project.FundingModel)
			for _, sec := range d.Sections {
				if strings.Contains(strings.ToLower(sec.Body), model) {
					return nil
				}
			}
			return fmt.Errorf("investment terms never name the %s funding model", model)
		}
		return nil
	}
	doc, res, err := Generate[LegalDocument](ctx, s.chain, FlowLegalDocument, legalDocumentPrompt(project, in.Kind), check)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "legal document generated",
		"request_id", requestcontext.RequestID(ctx),
		"project_id", project.ID,
		"kind", in.Kind,
		"model", res.Model,
		"attempts", res.Attempts,
	)
	return &LegalDocumentResult{ProjectID: project.ID, Kind: in.Kind, Document: doc, Result: res}, nil
}

type ProjectionPeriod struct {
	Label    string          `json:"label" validate:"required,max=40"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
}

// FinancialProjection is an illustrative forecast. Amounts are in the
// platform currency.
type FinancialProjection struct {
	Summary     string             `json:"summary" validate:"required,max=1000"`
	Periods     []ProjectionPeriod `json:"periods" validate:"min=1,max=5,dive"`
	Assumptions []string           `json:"assumptions" validate:"min=1,max=8,dive,required,max=300"`
}

func (p *FinancialProjection) Validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}
	for _, period := range p.Periods {
		if period.Revenue.IsNegative() || period.Expenses.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, "projection period "+period.Label+" has a negative amount")
		}
	}
	return rejectReturnPromises("projection", append([]string{p.Summary}, p.Assumptions...)...)
}

type ProjectionInput struct {
	OwnerID   id.UserID
	ProjectID id.ProjectID
	Years     int
}

type ProjectionResult struct {
	ProjectID  id.ProjectID         `json:"project_id"`
	Years      int                  `json:"years"`
	Projection *FinancialProjection `json:"projection"`
	Result
}

// ProjectFinancials forecasts the caller's own project over Years annual
// periods. The answer must have exactly one period per year.
func (s *Service) ProjectFinancials(ctx context.Context, in ProjectionInput) (*ProjectionResult, error) {
	years := in.Years
	if years == 0 {
		years = DefaultProjectionYears
	}
	if years < 1 || years > MaxProjectionYears {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("years must be between 1 and %d", MaxProjectionYears))
	}
	project, err := s.ownedProject(ctx, in.OwnerID, in.ProjectID, "projections")
	if err != nil {
		return nil, err
	}

	check := func(p *FinancialProjection) error {
		if len(p.Periods) != years {
			return fmt.Errorf("projection has %d periods for %d years", len(p.Periods), years)
		}
		return nil
	}
	projection, res, err := Generate[FinancialProjection](ctx, s.chain, FlowProjection, projectionPrompt(project, years), check)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "financial projection generated",
		"request_id", requestcontext.RequestID(ctx),
		"project_id", project.ID,
		"years", years,
		"model", res.Model,
		"attempts", res.Attempts,
	)
	return &ProjectionResult{ProjectID: project.ID, Years: years, Projection: projection, Result: res}, nil
}

func rejectReturnPromises(what string, parts ...string) error {
	text := strings.ToLower(strings.Join(parts, " "))
	for _, phrase := range bannedPitchPhrases {
		if strings.Contains(text, phrase) {
			return dErrors.New(dErrors.CodeValidation, what+" promises returns: "+phrase)
		}
	}
	return nil
}

func legalDocumentPrompt(p *models.Project, kind LegalDocumentKind) string {
	var b strings.Builder
	b.WriteString("You draft crowdfunding campaign documents for review by counsel. Reply with a single JSON object with keys ")
	b.WriteString(`"title", "sections" (1-12 objects with "heading" and "body") and "disclaimer". `)
	b.WriteString("State plainly that investors can lose their money. Never promise returns.\n\n")
	switch kind {
	case DocumentRiskDisclosure:
		b.WriteString("Document: risk disclosure. Include at least one section headed with the word Risk.\n")
	case DocumentInvestmentTerms:
		fmt.Fprintf(&b, "Document: investment terms. Describe the %s funding model by name.\n", p.FundingModel)
	}
	writeProject(&b, p)
	return b.String()
}

func projectionPrompt(p *models.Project, years int) string {
	var b strings.Builder
	b.WriteString("You prepare illustrative financial projections for a crowdfunding campaign. Reply with a single JSON object with keys ")
	b.WriteString(`"summary", "periods" (objects with "label", "revenue" and "expenses" as non-negative numbers) and "assumptions" (1-8 strings). `)
	fmt.Fprintf(&b, "Give exactly %d annual periods. Label the figures as estimates and never promise returns.\n\n", years)
	writeProject(&b, p)
	return b.String()
}

func writeProject(b *strings.Builder, p *models.Project) {
	fmt.Fprintf(b, "Project: %s\n", p.Title)
	if p.Summary != "" {
		fmt.Fprintf(b, "Summary: %s\n", p.Summary)
	}
	fmt.Fprintf(b, "Funding model: %s\n", p.FundingModel)
	fmt.Fprintf(b, "Goal: %s\n", p.Goal.StringFixed(2))
	fmt.Fprintf(b, "Raised: %s\n", p.Raised.StringFixed(2))
}
