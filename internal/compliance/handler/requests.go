package handler

import (
	"strings"

	"crowdfund/internal/compliance"
	"crowdfund/pkg/platform/validation"
)

// GatekeeperRequest is the body for POST /compliance/gatekeeper.
type GatekeeperRequest struct {
	Action string         `json:"action" validate:"required,oneof=invest publish_project payout withdraw"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (r *GatekeeperRequest) Validate() error {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	return validation.Struct(r)
}

// AutoApprovalRequest is the body for POST /compliance/auto-approval.
type AutoApprovalRequest struct {
	ActionType string         `json:"action_type" validate:"required,oneof=kyc fallback_kyc document upgrade project investment payout"`
	EntityID   string         `json:"entity_id" validate:"omitempty,max=128"`
	Fields     map[string]any `json:"fields,omitempty"`
}

func (r *AutoApprovalRequest) Validate() error {
	r.ActionType = strings.ToLower(strings.TrimSpace(r.ActionType))
	r.EntityID = strings.TrimSpace(r.EntityID)
	return validation.Struct(r)
}

// UploadDocumentRequest is the body for POST /accounts/me/documents. Only the
// fact of the upload is recorded; file storage sits with the document vendor.
type UploadDocumentRequest struct {
	Kind string `json:"kind" validate:"required,oneof=bank_statement proof_of_address"`
}

func (r *UploadDocumentRequest) Validate() error {
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	return validation.Struct(r)
}

// KYCResultRequest is the body for POST /admin/accounts/{id}/kyc.
type KYCResultRequest struct {
	Status string `json:"status" validate:"required,oneof=not_started pending passed failed"`
}

func (r *KYCResultRequest) Validate() error {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	return validation.Struct(r)
}

func (r *KYCResultRequest) status() compliance.KYCStatus {
	return compliance.KYCStatus(r.Status)
}
