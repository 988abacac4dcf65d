package service

import (
	"context"
	"errors"
	"log/slog"

	accountmetrics "crowdfund/internal/accounts/metrics"
	"crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/internal/countries"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/sentinel"
	"crowdfund/pkg/requestcontext"
)

// Store persists accounts. Execute must hold a lock on the account across
// validate and mutate so concurrent webhooks cannot interleave.
type Store interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, userID id.UserID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Execute(ctx context.Context, userID id.UserID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error)
}

// CountryDirectory resolves provider coverage for a country code.
type CountryDirectory interface {
	Lookup(code string) (countries.Support, error)
}

// Service owns account registration and every change to verification state.
type Service struct {
	accounts  Store
	countries CountryDirectory
	logger    *slog.Logger
	metrics   *accountmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *accountmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(accounts Store, directory CountryDirectory, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("accounts store is required")
	}
	if directory == nil {
		return nil, errors.New("country directory is required")
	}
	s := &Service{
		accounts:  accounts,
		countries: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterInput is the data needed to open an account. UserID is the subject
// of the caller's bearer token; a nil ID gets a fresh one.
type RegisterInput struct {
	UserID  id.UserID
	Email   string
	Role    compliance.Role
	Country string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	country, err := s.resolveCountry(in.Country)
	if err != nil {
		return nil, err
	}
	userID := in.UserID
	if userID.IsNil() {
		userID = id.NewUserID()
	}
	account, err := models.NewAccount(userID, in.Email, in.Role, country, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			de, _ := dErrors.As(err)
			return nil, dErrors.New(dErrors.CodeValidation, de.Message)
		}
		return nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists for this user or email")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	mode := compliance.ModeFor(account.CountrySupport)
	s.metrics.IncrementRegistered(string(account.Role), string(mode))
	s.logger.InfoContext(ctx, "account registered",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", account.ID,
		"country", account.Country,
		"mode", mode,
		"fallback_kyc_status", account.FallbackKYCStatus,
	)
	return account, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.Account, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	return account, nil
}

// ChangeCountry refreshes provider coverage and re-derives fallback state.
func (s *Service) ChangeCountry(ctx context.Context, userID id.UserID, code string) (*models.Account, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	country, err := s.resolveCountry(code)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	account, err := s.accounts.Execute(ctx, userID,
		func(*models.Account) error { return nil },
		func(a *models.Account) { a.ApplyCountry(country, now) },
	)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	s.logger.InfoContext(ctx, "account country changed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"country", account.Country,
		"fallback_kyc_status", account.FallbackKYCStatus,
	)
	return account, nil
}

// RecordKYCResult applies an identity provider outcome.
func (s *Service) RecordKYCResult(ctx context.Context, userID id.UserID, status compliance.KYCStatus) (*models.Account, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown kyc status: "+string(status))
	}
	now := requestcontext.Now(ctx)
	account, err := s.accounts.Execute(ctx, userID,
		func(*models.Account) error { return nil },
		func(a *models.Account) { _ = a.ApplyKYCResult(status, now) },
	)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	s.metrics.IncrementKYCResult(string(status))
	s.logger.InfoContext(ctx, "kyc result recorded",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"kyc_status", status,
	)
	return account, nil
}

// MarkDocumentUploaded records a fallback document. Uploads outside fallback
// mode are a conflict.
func (s *Service) MarkDocumentUploaded(ctx context.Context, userID id.UserID, kind models.DocumentKind) (*models.Account, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	kind, err := models.ParseDocumentKind(string(kind))
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	account, err := s.accounts.Execute(ctx, userID,
		func(a *models.Account) error { return a.CanUploadDocument() },
		func(a *models.Account) { a.ApplyDocumentUploaded(kind, now) },
	)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	s.metrics.IncrementDocumentUploaded(string(kind))
	s.logger.InfoContext(ctx, "fallback document uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"kind", kind,
		"fallback_kyc_status", account.FallbackKYCStatus,
	)
	return account, nil
}

// ResolveFallbackReview applies a reviewer's decision on fallback verification.
func (s *Service) ResolveFallbackReview(ctx context.Context, userID id.UserID, approved bool) (*models.Account, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	account, err := s.accounts.Execute(ctx, userID,
		func(a *models.Account) error {
			if !a.InFallbackMode() {
				return dErrors.New(dErrors.CodeConflict, "account is not in fallback verification")
			}
			return nil
		},
		func(a *models.Account) { a.ApplyFallbackResolution(approved, now) },
	)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	s.metrics.IncrementFallbackResolution(approved)
	s.logger.InfoContext(ctx, "fallback review resolved",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"approved", approved,
		"payout_blocked", account.PayoutBlocked,
	)
	return account, nil
}

// UpdateRisk replaces the AML signals on an account.
func (s *Service) UpdateRisk(ctx context.Context, userID id.UserID, update models.RiskUpdate) (*models.Account, error) {
	if err := requireUserID(userID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	account, err := s.accounts.Execute(ctx, userID,
		func(a *models.Account) error {
			// Dry run on a copy so a bad update fails before any mutation.
			return a.Clone().ApplyRisk(update, now)
		},
		func(a *models.Account) { _ = a.ApplyRisk(update, now) },
	)
	if err != nil {
		return nil, wrapAccountErr(err)
	}
	s.logger.InfoContext(ctx, "risk profile updated",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"risk_score", account.RiskScore,
		"risk_tier", account.RiskTier,
		"risk_flags", len(account.RiskFlags),
	)
	return account, nil
}

// VerificationState loads the gatekeeper projection for a user.
func (s *Service) VerificationState(ctx context.Context, userID id.UserID) (compliance.VerificationState, compliance.Role, error) {
	account, err := s.Get(ctx, userID)
	if err != nil {
		return compliance.VerificationState{}, "", err
	}
	return account.VerificationState(), account.Role, nil
}

// RiskProfile loads the auto-approver projection for a user.
func (s *Service) RiskProfile(ctx context.Context, userID id.UserID) (compliance.RiskProfile, error) {
	account, err := s.Get(ctx, userID)
	if err != nil {
		return compliance.RiskProfile{}, err
	}
	return account.RiskProfile(), nil
}

// resolveCountry maps a code onto coverage. Well-formed codes missing from the
// table resolve to no provider coverage and the highest jurisdiction tier.
func (s *Service) resolveCountry(code string) (models.Country, error) {
	norm, err := countries.NormalizeCode(code)
	if err != nil {
		return models.Country{}, dErrors.New(dErrors.CodeValidation, "country must be an ISO-3166 alpha-2 code")
	}
	support, err := s.countries.Lookup(norm)
	if err == nil {
		return models.Country{Code: support.Code, Support: support.Payment, RiskTier: support.RiskTier}, nil
	}
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return models.Country{Code: norm, RiskTier: compliance.CountryTier3}, nil
	}
	return models.Country{}, err
}

func requireUserID(userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "user id is required")
	}
	return nil
}

func wrapAccountErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "account store failure")
}
