package compliance

import "strings"

const (
	ReasonInvalidRole          = "Invalid user role for action."
	ReasonKYCNotPassed         = "KYC not passed"
	ReasonKYCPassed            = "KYC passed"
	ReasonProviderVerification = "Payout provider verification applies"
	ReasonFallbackIncomplete   = "Fallback verification incomplete"
	ReasonFallbackComplete     = "Fallback verification complete"
	ReasonActionAllowed        = "Action allowed under current conditions."

	actionPayoutsBlocked = "Payouts remain blocked until bank verification and manual review are complete."
)

var requirementText = map[Requirement]string{
	RequirementKYC:            "Complete and pass identity verification",
	RequirementBankStatement:  "Upload a bank statement",
	RequirementProofOfAddress: "Upload proof of address",
	RequirementManualReview:   "Await manual compliance approval",
}

// requiredRole lists the role an action needs. Actions absent here are open to
// any role.
var requiredRole = map[GateAction]Role{
	GateInvest:         RoleInvestor,
	GatePublishProject: RoleOwner,
}

// EvaluateGatekeeper decides whether a single action may proceed now and, when it
// may not, what the user has to do next. Pure: no I/O, safe for concurrent use.
//
// Rule order:
//  1. Mode is derived from country provider support and reported on every verdict
//  2. Role precondition (invest: investor, publish_project: owner)
//  3. invest/publish_project need passed KYC
//  4. payout/withdraw: normal mode allows; fallback mode needs every fallback step
//  5. Anything else is allowed
//
// An error is returned only for malformed input, never for a deny.
func EvaluateGatekeeper(state VerificationState, action ActionRequest) (Verdict, error) {
	if err := state.Validate(); err != nil {
		return Verdict{}, err
	}
	if err := action.Validate(); err != nil {
		return Verdict{}, err
	}

	mode := ModeFor(state.CountryPaymentSupport)

	if role, ok := requiredRole[action.Kind]; ok && action.Role != role {
		return Verdict{Allowed: false, Mode: mode, Reason: ReasonInvalidRole}, nil
	}

	switch action.Kind {
	case GateInvest, GatePublishProject:
		return evaluateKYCGated(state, action.Kind, mode), nil
	case GatePayout, GateWithdraw:
		return evaluatePayout(state, mode), nil
	default:
		// Unrecognised kinds are permitted; ParseGateAction keeps them out of HTTP.
		return Verdict{Allowed: true, Mode: mode, Reason: ReasonActionAllowed}, nil
	}
}

// ModeFor returns fallback when either provider is unavailable in the country.
func ModeFor(support CountryPaymentSupport) Mode {
	if !support.StripeSupported || !support.PlaidSupported {
		return ModeFallback
	}
	return ModeNormal
}

func evaluateKYCGated(state VerificationState, kind GateAction, mode Mode) Verdict {
	if state.KYCStatus != KYCPassed {
		return Verdict{
			Allowed:             false,
			Mode:                mode,
			Reason:              ReasonKYCNotPassed,
			RequiredAction:      "Complete and pass identity verification before " + gerund(kind) + ".",
			MissingRequirements: []Requirement{RequirementKYC},
		}
	}
	v := Verdict{Allowed: true, Mode: mode, Reason: ReasonKYCPassed}
	if mode == ModeFallback {
		v.RequiredAction = actionPayoutsBlocked
	}
	return v
}

func evaluatePayout(state VerificationState, mode Mode) Verdict {
	if mode == ModeNormal {
		return Verdict{Allowed: true, Mode: mode, Reason: ReasonProviderVerification}
	}

	missing := missingFallbackRequirements(state)
	if len(missing) > 0 {
		return Verdict{
			Allowed:             false,
			Mode:                mode,
			Reason:              ReasonFallbackIncomplete,
			RequiredAction:      describe(missing),
			MissingRequirements: missing,
		}
	}
	return Verdict{Allowed: true, Mode: mode, Reason: ReasonFallbackComplete}
}

// missingFallbackRequirements collects every unmet fallback condition, in the
// order a user would address them.
func missingFallbackRequirements(state VerificationState) []Requirement {
	var missing []Requirement
	if state.KYCStatus != KYCPassed {
		missing = append(missing, RequirementKYC)
	}
	if !state.BankDocumentUploaded {
		missing = append(missing, RequirementBankStatement)
	}
	if !state.ProofOfAddressUploaded {
		missing = append(missing, RequirementProofOfAddress)
	}
	if !state.ManualReviewApproved {
		missing = append(missing, RequirementManualReview)
	}
	return missing
}

func describe(missing []Requirement) string {
	parts := make([]string, 0, len(missing))
	for _, r := range missing {
		parts = append(parts, requirementText[r])
	}
	return strings.Join(parts, "; ") + "."
}

func gerund(kind GateAction) string {
	if kind == GatePublishProject {
		return "publishing"
	}
	return "investing"
}
