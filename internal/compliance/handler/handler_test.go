package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	accountmodels "crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/internal/compliance/handler/mocks"
	"crowdfund/internal/compliance/service"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// =============================================================================
// Compliance Handler Test Suite
// =============================================================================
// Justification for unit tests: the deny-to-403 mapping and strict action
// parsing live only in the handler; rule outcomes are covered elsewhere.

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	userID  id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.userID = id.NewUserID()

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	return testutil.WithUser(req, s.userID)
}

func (s *HandlerSuite) fallbackAccount() *accountmodels.Account {
	a, err := accountmodels.NewAccount(s.userID, "owner@example.com", compliance.RoleOwner, accountmodels.Country{
		Code:     "NG",
		RiskTier: compliance.CountryTier3,
	}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	return a
}

// =============================================================================
// POST /compliance/gatekeeper
// =============================================================================

func (s *HandlerSuite) TestGatekeeper() {
	s.Run("allowed verdict is 200", func() {
		s.service.EXPECT().CheckAction(gomock.Any(), s.userID, compliance.GateInvest, gomock.Nil()).
			Return(compliance.Verdict{Allowed: true, Mode: compliance.ModeNormal, Reason: compliance.ReasonKYCPassed}, nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/gatekeeper", map[string]string{"action": "INVEST"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[compliance.Verdict](s.T(), rr)
		s.True(resp.Allowed)
	})

	s.Run("denied verdict is 403 with verdict body", func() {
		denied := compliance.Verdict{
			Allowed:             false,
			Mode:                compliance.ModeFallback,
			Reason:              compliance.ReasonFallbackIncomplete,
			RequiredAction:      "Upload a bank statement.",
			MissingRequirements: []compliance.Requirement{compliance.RequirementBankStatement},
		}
		s.service.EXPECT().CheckAction(gomock.Any(), s.userID, compliance.GatePayout, gomock.Any()).Return(denied, nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/gatekeeper", map[string]string{"action": "payout"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
		resp := testutil.UnmarshalResponse[compliance.Verdict](s.T(), rr)
		s.Equal(denied, *resp)
	})

	s.Run("unknown action never reaches the service", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/gatekeeper", map[string]string{"action": "transfer"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("requires authentication", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/gatekeeper", map[string]string{"action": "invest"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("unknown account", func() {
		s.service.EXPECT().CheckAction(gomock.Any(), s.userID, compliance.GateWithdraw, gomock.Any()).
			Return(compliance.Verdict{}, dErrors.New(dErrors.CodeNotFound, "account not found"))
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/gatekeeper", map[string]string{"action": "withdraw"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

// =============================================================================
// POST /compliance/auto-approval
// =============================================================================

func (s *HandlerSuite) TestAutoApproval() {
	s.Run("returns decision", func() {
		s.service.EXPECT().Submit(gomock.Any(), service.SubmitInput{
			UserID:   s.userID,
			Action:   compliance.ApprovalKYC,
			EntityID: "session-9",
			Fields:   map[string]any{"provider": "persona"},
		}).Return(compliance.Decision{
			Outcome:              compliance.OutcomeEscalate,
			Reason:               compliance.ReasonKYCPending,
			RequiresManualReview: true,
		}, nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/auto-approval", map[string]any{
			"action_type": "kyc",
			"entity_id":   "session-9",
			"fields":      map[string]any{"provider": "persona"},
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[DecisionResponse](s.T(), rr)
		s.Equal("session-9", resp.EntityID)
		s.Equal(compliance.OutcomeEscalate, resp.Outcome)
		s.True(resp.RequiresManualReview)
	})

	s.Run("entity defaults to the caller", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(compliance.Decision{Outcome: compliance.OutcomeApprove}, nil)
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/auto-approval", map[string]any{"action_type": "upgrade"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertJSONContains(s.T(), rr, "entity_id", s.userID.String())
	})

	s.Run("marketplace action is refused by the service", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(compliance.Decision{}, dErrors.New(dErrors.CodeInvalidInput, "action project is decided by the marketplace endpoints"))
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/auto-approval", map[string]any{"action_type": "project"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("recording outage is 503", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(compliance.Decision{}, dErrors.New(dErrors.CodeUnavailable, "decision could not be recorded"))
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/auto-approval", map[string]any{"action_type": "document"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})
}

// =============================================================================
// Documents and KYC
// =============================================================================

func (s *HandlerSuite) TestUploadDocument() {
	s.Run("reports decision once documents are complete", func() {
		account := s.fallbackAccount()
		account.BankDocumentUploaded = true
		account.ProofOfAddressUploaded = true
		account.FallbackKYCStatus = compliance.FallbackPending
		decision := compliance.Decision{Outcome: compliance.OutcomeEscalate, Reason: compliance.ReasonFallbackPending, RequiresManualReview: true}
		s.service.EXPECT().UploadDocument(gomock.Any(), s.userID, accountmodels.DocumentProofOfAddress).
			Return(service.DocumentResult{Account: account, Decision: &decision}, nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts/me/documents", map[string]string{"kind": "proof_of_address"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[VerificationResponse](s.T(), rr)
		s.Equal(compliance.FallbackPending, resp.Verification.FallbackKYCStatus)
		s.Require().NotNil(resp.Decision)
		s.Equal(compliance.OutcomeEscalate, resp.Decision.Outcome)
	})

	s.Run("unknown kind", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts/me/documents", map[string]string{"kind": "passport"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("outside fallback conflicts", func() {
		s.service.EXPECT().UploadDocument(gomock.Any(), s.userID, accountmodels.DocumentBankStatement).
			Return(service.DocumentResult{}, dErrors.New(dErrors.CodeConflict, "documents are only accepted in fallback verification"))
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts/me/documents", map[string]string{"kind": "bank_statement"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

func (s *HandlerSuite) TestRecordKYC() {
	s.Run("applies result", func() {
		account := s.fallbackAccount()
		account.KYCStatus = compliance.KYCPassed
		s.service.EXPECT().RecordKYC(gomock.Any(), s.userID, compliance.KYCPassed).
			Return(account, compliance.Decision{Outcome: compliance.OutcomeEscalate, Reason: compliance.ReasonMixedSignals, RequiresManualReview: true}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/"+s.userID.String()+"/kyc", map[string]string{"status": "Passed"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[VerificationResponse](s.T(), rr)
		s.Equal(compliance.KYCPassed, resp.Verification.KYCStatus)
		s.Equal(compliance.ModeFallback, resp.Mode)
	})

	s.Run("unknown status", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/"+s.userID.String()+"/kyc", map[string]string{"status": "approved"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/123/kyc", map[string]string{"status": "passed"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}
