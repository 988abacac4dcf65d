package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crowdfund/internal/accounts/models"
	"crowdfund/internal/accounts/service"
	"crowdfund/internal/compliance"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/requestcontext"
)

// Service is the subset of the account service the handler calls.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.Account, error)
	Get(ctx context.Context, userID id.UserID) (*models.Account, error)
	ChangeCountry(ctx context.Context, userID id.UserID, code string) (*models.Account, error)
	UpdateRisk(ctx context.Context, userID id.UserID, update models.RiskUpdate) (*models.Account, error)
}

// Handler serves account endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts user endpoints. The router must already enforce bearer auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts", h.HandleRegister)
	r.Get("/accounts/me", h.HandleGetMe)
	r.Put("/accounts/me/country", h.HandleChangeCountry)
}

// RegisterAdmin mounts reviewer endpoints behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/accounts/{id}", h.HandleAdminGet)
	r.Post("/admin/accounts/{id}/risk", h.HandleUpdateRisk)
}

// HandleRegister handles POST /accounts. The account id is the token subject.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.Register(ctx, service.RegisterInput{
		UserID:  userID,
		Email:   req.Email,
		Role:    compliance.Role(req.Role),
		Country: req.Country,
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "account registration failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAccountResponse(account))
}

// HandleGetMe handles GET /accounts/me.
func (h *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	account, err := h.service.Get(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

// HandleChangeCountry handles PUT /accounts/me/country.
func (h *Handler) HandleChangeCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ChangeCountryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	account, err := h.service.ChangeCountry(ctx, userID, req.Country)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "country change failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

// HandleAdminGet handles GET /admin/accounts/{id}.
func (h *Handler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := h.service.Get(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAdminAccountResponse(account))
}

// HandleUpdateRisk handles POST /admin/accounts/{id}/risk.
func (h *Handler) HandleUpdateRisk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRiskRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	account, err := h.service.UpdateRisk(ctx, userID, req.toUpdate())
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "risk update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAdminAccountResponse(account))
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}
