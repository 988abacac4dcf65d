package models

import (
	"math"
	"net/mail"
	"slices"
	"strings"
	"time"

	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	pstrings "crowdfund/pkg/platform/strings"
)

// DocumentKind is a fallback verification document.
type DocumentKind string

const (
	DocumentBankStatement  DocumentKind = "bank_statement"
	DocumentProofOfAddress DocumentKind = "proof_of_address"
)

func ParseDocumentKind(s string) (DocumentKind, error) {
	k := DocumentKind(strings.ToLower(strings.TrimSpace(s)))
	if k != DocumentBankStatement && k != DocumentProofOfAddress {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown document kind: "+s)
	}
	return k, nil
}

// Country is the resolved country record copied onto an account.
type Country struct {
	Code     string
	Support  compliance.CountryPaymentSupport
	RiskTier compliance.CountryRiskTier
}

// Account is a marketplace user together with their verification and risk state.
//
// Invariants (restored by normalize after every mutation):
//   - FallbackKYCStatus is not_required whenever Stripe operates in the country
//   - PayoutBlocked is true while fallback is required, pending or rejected and
//     false otherwise
//   - ManualReviewApproved is false once fallback has been rejected
//   - RiskFlags is a sorted set
type Account struct {
	ID      id.UserID       `json:"id"`
	Email   string          `json:"email"`
	Role    compliance.Role `json:"role"`
	Country string          `json:"country"`

	CountrySupport  compliance.CountryPaymentSupport `json:"country_payment_support"`
	CountryRiskTier compliance.CountryRiskTier       `json:"country_risk_tier"`

	KYCStatus              compliance.KYCStatus         `json:"kyc_status"`
	FallbackKYCStatus      compliance.FallbackKYCStatus `json:"fallback_kyc_status"`
	PayoutBlocked          bool                         `json:"payout_blocked"`
	BankDocumentUploaded   bool                         `json:"bank_document_uploaded"`
	ProofOfAddressUploaded bool                         `json:"proof_of_address_uploaded"`
	ManualReviewApproved   bool                         `json:"manual_review_approved"`

	RiskScore float64             `json:"risk_score"`
	RiskTier  compliance.RiskTier `json:"risk_tier"`
	RiskFlags []string            `json:"risk_flags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount builds an account with no verification progress. Fallback KYC
// starts required when Stripe does not operate in the country.
func NewAccount(userID id.UserID, email string, role compliance.Role, country Country, now time.Time) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is not a valid address")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role: "+string(role))
	}
	a := &Account{
		ID:                userID,
		Email:             email,
		Role:              role,
		KYCStatus:         compliance.KYCNotStarted,
		FallbackKYCStatus: compliance.FallbackNotRequired,
		RiskTier:          compliance.RiskLow,
		RiskFlags:         []string{},
		CreatedAt:         now,
	}
	a.ApplyCountry(country, now)
	return a, nil
}

// ApplyCountry moves the account to a new country. A supported country clears
// fallback; an unsupported one requires it unless fallback is already underway.
func (a *Account) ApplyCountry(c Country, now time.Time) {
	a.Country = c.Code
	a.CountrySupport = c.Support
	a.CountryRiskTier = c.RiskTier
	if !c.Support.StripeSupported && a.FallbackKYCStatus == compliance.FallbackNotRequired {
		a.FallbackKYCStatus = compliance.FallbackRequired
		a.ManualReviewApproved = false
	}
	a.touch(now)
}

// ApplyKYCResult records the identity provider outcome.
func (a *Account) ApplyKYCResult(status compliance.KYCStatus, now time.Time) error {
	if !status.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown kyc status: "+string(status))
	}
	a.KYCStatus = status
	a.touch(now)
	return nil
}

// InFallbackMode reports whether either payment provider is missing.
func (a *Account) InFallbackMode() bool {
	return compliance.ModeFor(a.CountrySupport) == compliance.ModeFallback
}

// CanUploadDocument rejects uploads outside fallback mode or after the
// fallback review has concluded.
func (a *Account) CanUploadDocument() error {
	if !a.InFallbackMode() {
		return dErrors.New(dErrors.CodeConflict, "documents are only collected for fallback verification")
	}
	if a.FallbackKYCStatus == compliance.FallbackApproved {
		return dErrors.New(dErrors.CodeConflict, "fallback verification is already approved")
	}
	return nil
}

// ApplyDocumentUploaded marks a document present and moves fallback from
// required to pending once both documents exist.
func (a *Account) ApplyDocumentUploaded(kind DocumentKind, now time.Time) {
	switch kind {
	case DocumentBankStatement:
		a.BankDocumentUploaded = true
	case DocumentProofOfAddress:
		a.ProofOfAddressUploaded = true
	}
	if a.DocumentsComplete() && a.FallbackKYCStatus == compliance.FallbackRequired {
		a.FallbackKYCStatus = compliance.FallbackPending
	}
	a.touch(now)
}

// DocumentsComplete reports whether both fallback documents are on file.
func (a *Account) DocumentsComplete() bool {
	return a.BankDocumentUploaded && a.ProofOfAddressUploaded
}

// AwaitingManualReview reports whether a fallback-mode account has its
// documents on file but no reviewer approval yet. This also covers a Stripe
// country without Plaid, where fallbackKycStatus stays not_required.
func (a *Account) AwaitingManualReview() bool {
	return a.InFallbackMode() &&
		a.DocumentsComplete() &&
		!a.ManualReviewApproved &&
		a.FallbackKYCStatus != compliance.FallbackRejected
}

// ApplyFallbackResolution records the reviewer's verdict on fallback verification.
func (a *Account) ApplyFallbackResolution(approved bool, now time.Time) {
	a.ManualReviewApproved = approved
	if approved {
		a.FallbackKYCStatus = compliance.FallbackApproved
	} else {
		a.FallbackKYCStatus = compliance.FallbackRejected
	}
	a.touch(now)
}

// RiskUpdate carries new AML signals. A zero CountryRiskTier keeps the tier
// derived from the country table.
type RiskUpdate struct {
	Score           float64
	Tier            compliance.RiskTier
	Flags           []string
	CountryRiskTier compliance.CountryRiskTier
}

func (a *Account) ApplyRisk(u RiskUpdate, now time.Time) error {
	if math.IsNaN(u.Score) || math.IsInf(u.Score, 0) || u.Score < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "risk score must be a non-negative number")
	}
	if !u.Tier.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown risk tier: "+string(u.Tier))
	}
	if u.CountryRiskTier != "" {
		if !u.CountryRiskTier.IsValid() {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown country risk tier: "+string(u.CountryRiskTier))
		}
		a.CountryRiskTier = u.CountryRiskTier
	}
	a.RiskScore = u.Score
	a.RiskTier = u.Tier
	a.RiskFlags = u.Flags
	a.touch(now)
	return nil
}

// VerificationState projects the account onto the gatekeeper input.
func (a *Account) VerificationState() compliance.VerificationState {
	return compliance.VerificationState{
		KYCStatus:              a.KYCStatus,
		FallbackKYCStatus:      a.FallbackKYCStatus,
		CountryPaymentSupport:  a.CountrySupport,
		PayoutBlocked:          a.PayoutBlocked,
		BankDocumentUploaded:   a.BankDocumentUploaded,
		ProofOfAddressUploaded: a.ProofOfAddressUploaded,
		ManualReviewApproved:   a.ManualReviewApproved,
	}
}

// RiskProfile projects the account onto the auto-approver input.
func (a *Account) RiskProfile() compliance.RiskProfile {
	return compliance.RiskProfile{
		RiskScore:         a.RiskScore,
		RiskTier:          a.RiskTier,
		RiskFlags:         slices.Clone(a.RiskFlags),
		KYCStatus:         a.KYCStatus,
		FallbackKYCStatus: a.FallbackKYCStatus,
		PayoutBlocked:     a.PayoutBlocked,
		CountryRiskTier:   a.CountryRiskTier,
	}
}

// Clone returns a deep copy safe to hand out of a store.
func (a *Account) Clone() *Account {
	c := *a
	c.RiskFlags = slices.Clone(a.RiskFlags)
	if c.RiskFlags == nil {
		c.RiskFlags = []string{}
	}
	return &c
}

func (a *Account) touch(now time.Time) {
	a.UpdatedAt = now
	a.normalize()
}

func (a *Account) normalize() {
	if a.CountrySupport.StripeSupported {
		a.FallbackKYCStatus = compliance.FallbackNotRequired
	}
	switch a.FallbackKYCStatus {
	case compliance.FallbackRequired, compliance.FallbackPending:
		a.PayoutBlocked = true
	case compliance.FallbackRejected:
		a.PayoutBlocked = true
		a.ManualReviewApproved = false
	default:
		a.PayoutBlocked = false
	}
	a.RiskFlags = pstrings.FlagSet(a.RiskFlags)
}
