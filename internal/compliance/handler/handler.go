package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountmodels "crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/internal/compliance/service"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/requestcontext"
)

// Service is the subset of the compliance service the handler calls.
type Service interface {
	CheckAction(ctx context.Context, userID id.UserID, kind compliance.GateAction, fields map[string]any) (compliance.Verdict, error)
	Submit(ctx context.Context, in service.SubmitInput) (compliance.Decision, error)
	UploadDocument(ctx context.Context, userID id.UserID, kind accountmodels.DocumentKind) (service.DocumentResult, error)
	RecordKYC(ctx context.Context, userID id.UserID, status compliance.KYCStatus) (*accountmodels.Account, compliance.Decision, error)
}

// Handler serves gatekeeper checks, auto-approval submissions and the
// verification inputs that feed them.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts user endpoints. The router must already enforce bearer auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/gatekeeper", h.HandleGatekeeper)
	r.Post("/compliance/auto-approval", h.HandleAutoApproval)
	r.Post("/accounts/me/documents", h.HandleUploadDocument)
}

// RegisterAdmin mounts KYC webhook relays behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/accounts/{id}/kyc", h.HandleRecordKYC)
}

// HandleGatekeeper handles POST /compliance/gatekeeper. A deny is a 403 that
// still carries the full verdict.
func (h *Handler) HandleGatekeeper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GatekeeperRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	kind, err := compliance.ParseGateAction(req.Action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	verdict, err := h.service.CheckAction(ctx, userID, kind, req.Fields)
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "gatekeeper check failed", err, "action", kind)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if !verdict.Allowed {
		status = http.StatusForbidden
	}
	httputil.WriteJSON(w, status, verdict)
}

// HandleAutoApproval handles POST /compliance/auto-approval.
func (h *Handler) HandleAutoApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AutoApprovalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	action, err := compliance.ParseApprovalAction(req.ActionType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.service.Submit(ctx, service.SubmitInput{
		UserID:   userID,
		Action:   action,
		EntityID: req.EntityID,
		Fields:   req.Fields,
	})
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "auto-approval submission failed", err, "action_type", action)
		httputil.WriteError(w, err)
		return
	}
	entityID := req.EntityID
	if entityID == "" {
		entityID = userID.String()
	}
	httputil.WriteJSON(w, http.StatusOK, DecisionResponse{
		ActionType: action,
		EntityID:   entityID,
		Decision:   decision,
	})
}

// HandleUploadDocument handles POST /accounts/me/documents.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UploadDocumentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.UploadDocument(ctx, userID, accountmodels.DocumentKind(req.Kind))
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "document upload failed", err, "kind", req.Kind)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(result.Account, result.Decision))
}

// HandleRecordKYC handles POST /admin/accounts/{id}/kyc.
func (h *Handler) HandleRecordKYC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[KYCResultRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, decision, err := h.service.RecordKYC(ctx, userID, req.status())
	if err != nil {
		httputil.LogFailure(ctx, h.logger, "kyc result failed", err, "user_id", userID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(account, &decision))
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}
