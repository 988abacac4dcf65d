// Package service composes the gatekeeper and auto-approver with account
// state, decision recording and observability.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountmodels "crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/internal/compliance/metrics"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/requestcontext"
)

const tracerName = "crowdfund/internal/compliance"

// Accounts is the account service surface compliance needs.
type Accounts interface {
	Get(ctx context.Context, userID id.UserID) (*accountmodels.Account, error)
	MarkDocumentUploaded(ctx context.Context, userID id.UserID, kind accountmodels.DocumentKind) (*accountmodels.Account, error)
	RecordKYCResult(ctx context.Context, userID id.UserID, status compliance.KYCStatus) (*accountmodels.Account, error)
}

// DecisionRecorder makes a decision durable before the caller commits it.
type DecisionRecorder interface {
	Record(ctx context.Context, rec compliance.DecisionRecord) error
}

type Service struct {
	accounts Accounts
	recorder DecisionRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer overrides the global tracer, mainly for tests.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func New(accounts Accounts, recorder DecisionRecorder, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("accounts service is required")
	}
	if recorder == nil {
		return nil, errors.New("decision recorder is required")
	}
	s := &Service{
		accounts: accounts,
		recorder: recorder,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckAction loads the user and asks the gatekeeper whether kind is allowed.
func (s *Service) CheckAction(ctx context.Context, userID id.UserID, kind compliance.GateAction, fields map[string]any) (compliance.Verdict, error) {
	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return compliance.Verdict{}, err
	}
	return s.Gate(ctx, account, kind, fields)
}

// Gate evaluates the gatekeeper against an already loaded account.
func (s *Service) Gate(ctx context.Context, account *accountmodels.Account, kind compliance.GateAction, fields map[string]any) (compliance.Verdict, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.gatekeeper",
		trace.WithAttributes(
			attribute.String("action", string(kind)),
			attribute.String("user_id", account.ID.String()),
		))
	defer span.End()
	start := time.Now()

	verdict, err := compliance.EvaluateGatekeeper(account.VerificationState(), compliance.ActionRequest{
		Kind:   kind,
		Role:   account.Role,
		Fields: fields,
	})
	s.metrics.ObserveEvaluate("gatekeeper", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid gatekeeper input")
		return compliance.Verdict{}, err
	}
	span.SetAttributes(
		attribute.Bool("allowed", verdict.Allowed),
		attribute.String("mode", string(verdict.Mode)),
	)
	s.metrics.IncrementVerdict(string(kind), string(verdict.Mode), verdict.Allowed)

	level := slog.LevelInfo
	if !verdict.Allowed {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "gatekeeper verdict",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", account.ID,
		"action", kind,
		"mode", verdict.Mode,
		"allowed", verdict.Allowed,
		"reason", verdict.Reason,
	)
	return verdict, nil
}

// Decide runs the auto-approver for an already loaded account. The decision
// is not recorded.
func (s *Service) Decide(ctx context.Context, account *accountmodels.Account, action compliance.ApprovalAction, entity compliance.EntitySnapshot) (compliance.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.auto_approval",
		trace.WithAttributes(
			attribute.String("action", string(action)),
			attribute.String("entity_id", entity.ID),
			attribute.String("user_id", account.ID.String()),
		))
	defer span.End()
	start := time.Now()

	decision, err := compliance.DecideAutoApproval(account.RiskProfile(), action, entity)
	s.metrics.ObserveEvaluate("auto_approver", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid auto-approval input")
		return compliance.Decision{}, err
	}
	span.SetAttributes(
		attribute.String("outcome", string(decision.Outcome)),
		attribute.Bool("requires_manual_review", decision.RequiresManualReview),
	)
	s.logger.InfoContext(ctx, "auto-approval decision",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", account.ID,
		"action", action,
		"entity_id", entity.ID,
		"decision", decision.Outcome,
		"reason", decision.Reason,
	)
	return decision, nil
}

// DecideAndRecord runs Decide and records the result.
func (s *Service) DecideAndRecord(ctx context.Context, account *accountmodels.Account, action compliance.ApprovalAction, entity compliance.EntitySnapshot) (compliance.Decision, error) {
	decision, err := s.Decide(ctx, account, action, entity)
	if err != nil {
		return compliance.Decision{}, err
	}
	if err := s.recorder.Record(ctx, compliance.DecisionRecord{
		UserID:    account.ID,
		Action:    action,
		EntityID:  entity.ID,
		Decision:  decision,
		DecidedAt: requestcontext.Now(ctx),
	}); err != nil {
		return compliance.Decision{}, err
	}
	return decision, nil
}

// SubmitInput is an account-level submission for auto-approval.
type SubmitInput struct {
	UserID   id.UserID
	Action   compliance.ApprovalAction
	EntityID string
	Fields   map[string]any
}

// Submit decides and records an account-level submission. Marketplace
// actions go through their own endpoints so the entity state moves with the
// decision.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (compliance.Decision, error) {
	if !isAccountAction(in.Action) {
		return compliance.Decision{}, dErrors.New(dErrors.CodeInvalidInput,
			"action "+string(in.Action)+" is decided by the marketplace endpoints")
	}
	account, err := s.accounts.Get(ctx, in.UserID)
	if err != nil {
		return compliance.Decision{}, err
	}
	entityID := in.EntityID
	if entityID == "" {
		entityID = account.ID.String()
	}
	return s.DecideAndRecord(ctx, account, in.Action, compliance.EntitySnapshot{ID: entityID, Fields: in.Fields})
}

// DocumentResult is the outcome of a fallback document upload. Decision is
// set once both documents are in and fallback review has been requested.
type DocumentResult struct {
	Account  *accountmodels.Account
	Decision *compliance.Decision
}

// UploadDocument records a fallback document. The upload that completes the
// document set of an account in fallback mode hands it to a reviewer: a
// fallback_kyc decision is made and recorded, and unless it rejects outright
// the account is queued for manual approval.
func (s *Service) UploadDocument(ctx context.Context, userID id.UserID, kind accountmodels.DocumentKind) (DocumentResult, error) {
	before, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return DocumentResult{}, err
	}
	account, err := s.accounts.MarkDocumentUploaded(ctx, userID, kind)
	if err != nil {
		return DocumentResult{}, err
	}
	result := DocumentResult{Account: account}
	if before.DocumentsComplete() || !account.AwaitingManualReview() {
		return result, nil
	}
	entity := compliance.EntitySnapshot{
		ID: account.ID.String(),
		Fields: map[string]any{
			"bank_document_uploaded":    account.BankDocumentUploaded,
			"proof_of_address_uploaded": account.ProofOfAddressUploaded,
		},
	}
	decision, err := s.Decide(ctx, account, compliance.ApprovalFallbackKYC, entity)
	if err != nil {
		return DocumentResult{}, err
	}
	rec := compliance.DecisionRecord{
		UserID:    account.ID,
		Action:    compliance.ApprovalFallbackKYC,
		EntityID:  entity.ID,
		Decision:  decision,
		DecidedAt: requestcontext.Now(ctx),
	}
	if !decision.RequiresManualReview && decision.Outcome != compliance.OutcomeReject {
		rec.ReviewReason = compliance.ReasonFallbackDocumentsReady
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		return DocumentResult{}, err
	}
	result.Decision = &decision
	return result, nil
}

// RecordKYC applies a KYC provider result and records a kyc decision for the
// new state.
func (s *Service) RecordKYC(ctx context.Context, userID id.UserID, status compliance.KYCStatus) (*accountmodels.Account, compliance.Decision, error) {
	account, err := s.accounts.RecordKYCResult(ctx, userID, status)
	if err != nil {
		return nil, compliance.Decision{}, err
	}
	decision, err := s.DecideAndRecord(ctx, account, compliance.ApprovalKYC, compliance.EntitySnapshot{
		ID:     account.ID.String(),
		Fields: map[string]any{"kyc_status": string(status)},
	})
	if err != nil {
		return nil, compliance.Decision{}, err
	}
	return account, decision, nil
}

func isAccountAction(a compliance.ApprovalAction) bool {
	switch a {
	case compliance.ApprovalKYC, compliance.ApprovalFallbackKYC, compliance.ApprovalDocument, compliance.ApprovalUpgrade:
		return true
	}
	return false
}
