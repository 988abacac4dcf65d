package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"crowdfund/internal/accounts/handler/mocks"
	"crowdfund/internal/accounts/models"
	"crowdfund/internal/accounts/service"
	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// =============================================================================
// Account Handler Test Suite
// =============================================================================
// Justification for unit tests: request parsing, auth extraction and error
// mapping are handler concerns; account rules are covered by service tests.

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

func (s *HandlerSuite) account() *models.Account {
	a, err := models.NewAccount(s.userID, "owner@example.com", compliance.RoleOwner, models.Country{
		Code:     "NG",
		RiskTier: compliance.CountryTier3,
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s.Require().NoError(err)
	return a
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	return testutil.WithUser(req, s.userID)
}

// =============================================================================
// POST /accounts
// =============================================================================

func (s *HandlerSuite) TestRegister() {
	s.Run("creates account for token subject", func() {
		s.service.EXPECT().Register(gomock.Any(), service.RegisterInput{
			UserID:  s.userID,
			Email:   "owner@example.com",
			Role:    compliance.RoleOwner,
			Country: "ng",
		}).Return(s.account(), nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts", map[string]string{
			"email":   " owner@example.com ",
			"role":    "Owner",
			"country": "ng",
		}))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[AccountResponse](s.T(), rr)
		s.Equal(s.userID.String(), resp.ID)
		s.Equal(compliance.ModeFallback, resp.Mode)
		s.Equal(compliance.FallbackRequired, resp.Verification.FallbackKYCStatus)
		s.True(resp.Verification.PayoutBlocked)
	})

	s.Run("requires authentication", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts", map[string]string{
			"email": "owner@example.com", "role": "owner", "country": "NG",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("rejects unknown role", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts", map[string]string{
			"email": "owner@example.com", "role": "admin", "country": "NG",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("rejects malformed email", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts", map[string]string{
			"email": "not-an-email", "role": "owner", "country": "NG",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("maps conflict", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "account already exists for this user or email"))
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts", map[string]string{
			"email": "owner@example.com", "role": "owner", "country": "NG",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

// =============================================================================
// /accounts/me
// =============================================================================

func (s *HandlerSuite) TestGetMe() {
	s.service.EXPECT().Get(gomock.Any(), s.userID).Return(s.account(), nil)
	rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/accounts/me")))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "email", "owner@example.com")
}

func (s *HandlerSuite) TestChangeCountry() {
	s.Run("passes country through", func() {
		s.service.EXPECT().ChangeCountry(gomock.Any(), s.userID, "GB").Return(s.account(), nil)
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPut, "/accounts/me/country", map[string]string{"country": "GB"}))
		testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.router, req))
	})

	s.Run("rejects three letter code", func() {
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPut, "/accounts/me/country", map[string]string{"country": "GBR"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown account", func() {
		s.service.EXPECT().ChangeCountry(gomock.Any(), s.userID, "GB").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "account not found"))
		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPut, "/accounts/me/country", map[string]string{"country": "GB"}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

// =============================================================================
// Admin
// =============================================================================

func (s *HandlerSuite) TestUpdateRisk() {
	s.Run("applies update", func() {
		s.service.EXPECT().UpdateRisk(gomock.Any(), s.userID, models.RiskUpdate{
			Score: 42,
			Tier:  compliance.RiskMedium,
			Flags: []string{"pep"},
		}).Return(s.account(), nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/"+s.userID.String()+"/risk", map[string]any{
			"risk_score": 42,
			"risk_tier":  "MEDIUM",
			"risk_flags": []string{"pep"},
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[AdminAccountResponse](s.T(), rr)
		s.Equal(compliance.CountryTier3, resp.Risk.CountryRiskTier)
	})

	s.Run("score is required", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/"+s.userID.String()+"/risk", map[string]any{
			"risk_tier": "low",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("negative score", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/"+s.userID.String()+"/risk", map[string]any{
			"risk_score": -1, "risk_tier": "low",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts/nope/risk", map[string]any{
			"risk_score": 1, "risk_tier": "low",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *HandlerSuite) TestAdminGet() {
	s.service.EXPECT().Get(gomock.Any(), s.userID).Return(nil, context.DeadlineExceeded)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/accounts/"+s.userID.String()))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
}
