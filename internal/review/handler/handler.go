package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"crowdfund/internal/review/models"
	"crowdfund/internal/review/service"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/requestcontext"
)

type Service interface {
	Get(ctx context.Context, reviewID id.ReviewID) (*models.Item, error)
	ListOpen(ctx context.Context, limit int) ([]*models.Item, error)
	Resolve(ctx context.Context, in service.ResolveInput) (*models.Item, error)
}

// Handler serves the reviewer endpoints. All routes are admin-only.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/reviews", h.HandleList)
	r.Get("/admin/reviews/{id}", h.HandleGet)
	r.Post("/admin/reviews/{id}/resolve", h.HandleResolve)
}

type listResponse struct {
	Items []*models.Item `json:"items"`
	Count int            `json:"count"`
}

// HandleList handles GET /admin/reviews?limit=N.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	items, err := h.service.ListOpen(ctx, limit)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "list reviews failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
}

// HandleGet handles GET /admin/reviews/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	reviewID, err := id.ParseReviewID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	item, err := h.service.Get(r.Context(), reviewID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

// HandleResolve handles POST /admin/reviews/{id}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	reviewID, err := id.ParseReviewID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	item, err := h.service.Resolve(ctx, service.ResolveInput{
		ReviewID: reviewID,
		Outcome:  req.parsedOutcome,
		Reviewer: req.Reviewer,
		Note:     req.Note,
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "review resolution failed", err, "review_id", reviewID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}
