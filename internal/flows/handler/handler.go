package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"crowdfund/internal/compliance"
	"crowdfund/internal/flows"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/platform/validation"
	"crowdfund/pkg/requestcontext"
)

type Service interface {
	GeneratePitch(ctx context.Context, in flows.PitchInput) (*flows.PitchResult, error)
	RecommendCompliance(ctx context.Context, userID id.UserID, action compliance.GateAction) (*flows.RecommendationResult, error)
	GenerateLegalDocument(ctx context.Context, in flows.LegalDocumentInput) (*flows.LegalDocumentResult, error)
	ProjectFinancials(ctx context.Context, in flows.ProjectionInput) (*flows.ProjectionResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/flows/pitch", h.HandlePitch)
	r.Post("/flows/compliance-recommendation", h.HandleRecommendation)
	r.Post("/flows/legal-document", h.HandleLegalDocument)
	r.Post("/flows/financial-projection", h.HandleProjection)
}

type PitchRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	Audience  string `json:"audience" validate:"max=200"`
}

func (r *PitchRequest) Validate() error {
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.Audience = strings.TrimSpace(r.Audience)
	return validation.Struct(r)
}

type RecommendationRequest struct {
	Action string `json:"action" validate:"required,oneof=invest publish_project payout withdraw"`
}

func (r *RecommendationRequest) Validate() error {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	return validation.Struct(r)
}

type LegalDocumentRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	Kind      string `json:"kind" validate:"required,oneof=risk_disclosure investment_terms"`
}

func (r *LegalDocumentRequest) Validate() error {
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	return validation.Struct(r)
}

type ProjectionRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	Years     int    `json:"years" validate:"omitempty,min=1,max=5"`
}

func (r *ProjectionRequest) Validate() error {
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	return validation.Struct(r)
}

// HandlePitch handles POST /flows/pitch.
func (h *Handler) HandlePitch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PitchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	projectID, err := id.ParseProjectID(req.ProjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.GeneratePitch(ctx, flows.PitchInput{OwnerID: userID, ProjectID: projectID, Audience: req.Audience})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "pitch flow failed", err, "project_id", projectID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleRecommendation handles POST /flows/compliance-recommendation.
func (h *Handler) HandleRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecommendationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	action, err := compliance.ParseGateAction(req.Action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.RecommendCompliance(ctx, userID, action)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "recommendation flow failed", err, "action", action)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleLegalDocument handles POST /flows/legal-document.
func (h *Handler) HandleLegalDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[LegalDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	projectID, err := id.ParseProjectID(req.ProjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, err := flows.ParseLegalDocumentKind(req.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.GenerateLegalDocument(ctx, flows.LegalDocumentInput{OwnerID: userID, ProjectID: projectID, Kind: kind})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "legal document flow failed", err, "project_id", projectID, "kind", kind)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleProjection handles POST /flows/financial-projection.
func (h *Handler) HandleProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProjectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	projectID, err := id.ParseProjectID(req.ProjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.ProjectFinancials(ctx, flows.ProjectionInput{OwnerID: userID, ProjectID: projectID, Years: req.Years})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "projection flow failed", err, "project_id", projectID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}
