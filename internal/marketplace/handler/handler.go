package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crowdfund/internal/compliance"
	"crowdfund/internal/marketplace/models"
	"crowdfund/internal/marketplace/service"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/requestcontext"
)

// Service is the subset of the marketplace service the handler calls.
type Service interface {
	CreateProject(ctx context.Context, in service.CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error)
	PublishProject(ctx context.Context, ownerID id.UserID, projectID id.ProjectID) (*models.Project, error)
	Invest(ctx context.Context, in service.InvestInput) (*models.Investment, error)
	GetInvestment(ctx context.Context, userID id.UserID, investmentID id.InvestmentID) (*models.Investment, error)
	RequestPayout(ctx context.Context, in service.TransferInput) (*models.Payout, error)
	RequestWithdrawal(ctx context.Context, in service.TransferInput) (*models.Payout, error)
	GetPayout(ctx context.Context, userID id.UserID, payoutID id.PayoutID) (*models.Payout, error)
	SettlePayout(ctx context.Context, payoutID id.PayoutID) (*models.Payout, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts marketplace endpoints. The router must already enforce
// bearer auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/projects", h.HandleCreateProject)
	r.Get("/projects/{id}", h.HandleGetProject)
	r.Post("/projects/{id}/publish", h.HandlePublishProject)
	r.Post("/projects/{id}/investments", h.HandleInvest)
	r.Post("/projects/{id}/payouts", h.HandleRequestPayout)
	r.Post("/projects/{id}/withdrawals", h.HandleRequestWithdrawal)
	r.Get("/investments/{id}", h.HandleGetInvestment)
	r.Get("/payouts/{id}", h.HandleGetPayout)
}

// RegisterAdmin mounts operator endpoints behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/payouts/{id}/settle", h.HandleSettlePayout)
}

// HandleCreateProject handles POST /projects.
func (h *Handler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateProjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	project, err := h.service.CreateProject(ctx, service.CreateProjectInput{
		OwnerID:      userID,
		Title:        req.Title,
		Summary:      req.Summary,
		FundingModel: models.FundingModel(req.FundingModel),
		Goal:         req.Goal,
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "create project failed", err)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toProjectResponse(project))
}

// HandleGetProject handles GET /projects/{id}.
func (h *Handler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, err := id.ParseProjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	project, err := h.service.GetProject(ctx, projectID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "get project failed", err, "project_id", projectID)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProjectResponse(project))
}

// HandlePublishProject handles POST /projects/{id}/publish.
func (h *Handler) HandlePublishProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	projectID, err := id.ParseProjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	project, err := h.service.PublishProject(ctx, userID, projectID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "publish project failed", err, "project_id", projectID)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProjectResponse(project))
}

// HandleInvest handles POST /projects/{id}/investments.
func (h *Handler) HandleInvest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	projectID, err := id.ParseProjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	inv, err := h.service.Invest(ctx, service.InvestInput{InvestorID: userID, ProjectID: projectID, Amount: req.Amount})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "investment failed", err, "project_id", projectID)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInvestmentResponse(inv))
}

// HandleRequestPayout handles POST /projects/{id}/payouts.
func (h *Handler) HandleRequestPayout(w http.ResponseWriter, r *http.Request) {
	h.handleTransfer(w, r, models.KindPayout)
}

// HandleRequestWithdrawal handles POST /projects/{id}/withdrawals.
func (h *Handler) HandleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.handleTransfer(w, r, models.KindWithdrawal)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request, kind models.PayoutKind) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	projectID, err := id.ParseProjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	in := service.TransferInput{UserID: userID, ProjectID: projectID, Amount: req.Amount}
	var p *models.Payout
	if kind == models.KindWithdrawal {
		p, err = h.service.RequestWithdrawal(ctx, in)
	} else {
		p, err = h.service.RequestPayout(ctx, in)
	}
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "transfer request failed", err, "kind", kind, "project_id", projectID)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPayoutResponse(p))
}

// HandleGetInvestment handles GET /investments/{id}.
func (h *Handler) HandleGetInvestment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	investmentID, err := id.ParseInvestmentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	inv, err := h.service.GetInvestment(ctx, userID, investmentID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "get investment failed", err, "investment_id", investmentID)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInvestmentResponse(inv))
}

// HandleGetPayout handles GET /payouts/{id}.
func (h *Handler) HandleGetPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	payoutID, err := id.ParsePayoutID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetPayout(ctx, userID, payoutID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "get payout failed", err, "payout_id", payoutID)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPayoutResponse(p))
}

// HandleSettlePayout handles POST /admin/payouts/{id}/settle.
func (h *Handler) HandleSettlePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID, err := id.ParsePayoutID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.SettlePayout(ctx, payoutID)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "settle payout failed", err, "payout_id", payoutID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPayoutResponse(p))
}

// writeError maps a gatekeeper deny to 403 with the verdict so clients see
// what to do next. Everything else goes through the shared error envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var denied *compliance.DeniedError
	if errors.As(err, &denied) {
		httputil.WriteJSON(w, http.StatusForbidden, DeniedResponse{
			Error:   string(dErrors.CodeForbidden),
			Action:  denied.Action,
			Verdict: denied.Verdict,
		})
		return
	}
	httputil.WriteError(w, err)
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}
