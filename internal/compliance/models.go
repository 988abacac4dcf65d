package compliance

import (
	"math"
	"strings"
	"time"

	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
)

// KYCStatus is the outcome of primary identity verification.
type KYCStatus string

const (
	KYCNotStarted KYCStatus = "not_started"
	KYCPending    KYCStatus = "pending"
	KYCPassed     KYCStatus = "passed"
	KYCFailed     KYCStatus = "failed"
)

func (s KYCStatus) IsValid() bool {
	switch s {
	case KYCNotStarted, KYCPending, KYCPassed, KYCFailed:
		return true
	}
	return false
}

// FallbackKYCStatus tracks the manual bank/address verification used where the
// primary payment provider does not operate.
type FallbackKYCStatus string

const (
	FallbackNotRequired FallbackKYCStatus = "not_required"
	FallbackRequired    FallbackKYCStatus = "required"
	FallbackPending     FallbackKYCStatus = "pending"
	FallbackApproved    FallbackKYCStatus = "approved"
	FallbackRejected    FallbackKYCStatus = "rejected"
)

func (s FallbackKYCStatus) IsValid() bool {
	switch s {
	case FallbackNotRequired, FallbackRequired, FallbackPending, FallbackApproved, FallbackRejected:
		return true
	}
	return false
}

// BlocksPayout reports whether the status forces payoutBlocked.
func (s FallbackKYCStatus) BlocksPayout() bool {
	return s == FallbackRequired || s == FallbackPending
}

// Role is the acting user's marketplace role.
type Role string

const (
	RoleInvestor Role = "investor"
	RoleOwner    Role = "owner"
)

func (r Role) IsValid() bool {
	return r == RoleInvestor || r == RoleOwner
}

// RiskTier is the coarse AML risk band of a user.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

func (t RiskTier) IsValid() bool {
	switch t {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// CountryRiskTier is the jurisdiction risk band (tier1 lowest risk).
type CountryRiskTier string

const (
	CountryTier1 CountryRiskTier = "tier1"
	CountryTier2 CountryRiskTier = "tier2"
	CountryTier3 CountryRiskTier = "tier3"
)

func (t CountryRiskTier) IsValid() bool {
	switch t {
	case CountryTier1, CountryTier2, CountryTier3:
		return true
	}
	return false
}

// CountryPaymentSupport records which providers operate in the user's country.
type CountryPaymentSupport struct {
	StripeSupported bool `json:"stripe_supported" yaml:"stripe"`
	PlaidSupported  bool `json:"plaid_supported" yaml:"plaid"`
}

// VerificationState is the per-user input to the Gatekeeper.
type VerificationState struct {
	KYCStatus              KYCStatus             `json:"kyc_status"`
	FallbackKYCStatus      FallbackKYCStatus     `json:"fallback_kyc_status"`
	CountryPaymentSupport  CountryPaymentSupport `json:"country_payment_support"`
	PayoutBlocked          bool                  `json:"payout_blocked"`
	BankDocumentUploaded   bool                  `json:"bank_document_uploaded"`
	ProofOfAddressUploaded bool                  `json:"proof_of_address_uploaded"`
	ManualReviewApproved   bool                  `json:"manual_review_approved"`
}

// Validate rejects enum values outside the documented domain. A validation error
// is a caller bug and is distinct from a deny verdict.
func (v VerificationState) Validate() error {
	if !v.KYCStatus.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown kyc status: "+string(v.KYCStatus))
	}
	if !v.FallbackKYCStatus.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown fallback kyc status: "+string(v.FallbackKYCStatus))
	}
	return nil
}

// GateAction is an action the Gatekeeper rules on.
type GateAction string

const (
	GateInvest         GateAction = "invest"
	GatePublishProject GateAction = "publish_project"
	GatePayout         GateAction = "payout"
	GateWithdraw       GateAction = "withdraw"
)

// ParseGateAction accepts only the documented kinds. Evaluation itself lets
// unrecognised kinds through, so boundaries must parse strictly.
func ParseGateAction(s string) (GateAction, error) {
	a := GateAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case GateInvest, GatePublishProject, GatePayout, GateWithdraw:
		return a, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown gatekeeper action: "+s)
}

// ActionRequest pairs an action with the acting user's role and a snapshot of the
// target entity.
type ActionRequest struct {
	Kind   GateAction     `json:"kind"`
	Role   Role           `json:"role"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (a ActionRequest) Validate() error {
	if a.Kind == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "action kind is required")
	}
	if !a.Role.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+string(a.Role))
	}
	return nil
}

// Mode reports whether the primary providers cover the user.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeFallback Mode = "fallback"
)

// Requirement is a remediation step missing from a denied verdict.
type Requirement string

const (
	RequirementKYC            Requirement = "pass_identity_verification"
	RequirementBankStatement  Requirement = "upload_bank_statement"
	RequirementProofOfAddress Requirement = "upload_proof_of_address"
	RequirementManualReview   Requirement = "await_manual_approval"
)

// Verdict is the Gatekeeper result.
type Verdict struct {
	Allowed             bool          `json:"allowed"`
	Mode                Mode          `json:"mode"`
	Reason              string        `json:"reason"`
	RequiredAction      string        `json:"required_action"`
	MissingRequirements []Requirement `json:"missing_requirements,omitempty"`
}

// RiskProfile is the per-user input to the Auto-Approver.
type RiskProfile struct {
	RiskScore         float64           `json:"risk_score"`
	RiskTier          RiskTier          `json:"risk_tier"`
	RiskFlags         []string          `json:"risk_flags"`
	KYCStatus         KYCStatus         `json:"kyc_status"`
	FallbackKYCStatus FallbackKYCStatus `json:"fallback_kyc_status"`
	PayoutBlocked     bool              `json:"payout_blocked"`
	CountryRiskTier   CountryRiskTier   `json:"country_risk_tier"`
}

func (p RiskProfile) Validate() error {
	if math.IsNaN(p.RiskScore) || math.IsInf(p.RiskScore, 0) || p.RiskScore < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "risk score must be a non-negative number")
	}
	if !p.RiskTier.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown risk tier: "+string(p.RiskTier))
	}
	if !p.KYCStatus.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown kyc status: "+string(p.KYCStatus))
	}
	if !p.FallbackKYCStatus.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown fallback kyc status: "+string(p.FallbackKYCStatus))
	}
	if !p.CountryRiskTier.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown country risk tier: "+string(p.CountryRiskTier))
	}
	return nil
}

// ApprovalAction is an entity-mutating submission the Auto-Approver rules on.
type ApprovalAction string

const (
	ApprovalProject     ApprovalAction = "project"
	ApprovalInvestment  ApprovalAction = "investment"
	ApprovalPayout      ApprovalAction = "payout"
	ApprovalKYC         ApprovalAction = "kyc"
	ApprovalFallbackKYC ApprovalAction = "fallback_kyc"
	ApprovalDocument    ApprovalAction = "document"
	ApprovalUpgrade     ApprovalAction = "upgrade"
)

func (a ApprovalAction) IsValid() bool {
	switch a {
	case ApprovalProject, ApprovalInvestment, ApprovalPayout, ApprovalKYC,
		ApprovalFallbackKYC, ApprovalDocument, ApprovalUpgrade:
		return true
	}
	return false
}

func ParseApprovalAction(s string) (ApprovalAction, error) {
	a := ApprovalAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown approval action: "+s)
	}
	return a, nil
}

// EntitySnapshot is the target entity's field snapshot. No rule reads Fields yet.
type EntitySnapshot struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Outcome is the Auto-Approver verdict.
type Outcome string

const (
	OutcomeApprove  Outcome = "approve"
	OutcomeReject   Outcome = "reject"
	OutcomeEscalate Outcome = "escalate"
)

// Decision is the Auto-Approver result.
type Decision struct {
	Outcome              Outcome `json:"decision"`
	Reason               string  `json:"reason"`
	RequiresManualReview bool    `json:"requires_manual_review"`
}

// DecisionRecord binds a decision to the user and entity it was made for.
type DecisionRecord struct {
	UserID    id.UserID
	Action    ApprovalAction
	EntityID  string
	Decision  Decision
	DecidedAt time.Time
	// ReviewReason queues the record for manual review with this reason even
	// when the decision does not require one.
	ReviewReason string
}

// NeedsReview reports whether the record must be queued for a reviewer.
func (r DecisionRecord) NeedsReview() bool {
	return r.Decision.RequiresManualReview || r.ReviewReason != ""
}

// QueueReason is the reason a reviewer sees on the queued item.
func (r DecisionRecord) QueueReason() string {
	if r.ReviewReason != "" {
		return r.ReviewReason
	}
	return r.Decision.Reason
}
