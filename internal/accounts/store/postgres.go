package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crowdfund/internal/accounts/models"
	"crowdfund/internal/compliance"
	"crowdfund/internal/platform/postgres"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/platform/sentinel"
	"crowdfund/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL. Execute locks the row with
// SELECT ... FOR UPDATE for the duration of validate and mutate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, role, country, stripe_supported, plaid_supported, country_risk_tier,
	kyc_status, fallback_kyc_status, payout_blocked, bank_document_uploaded, proof_of_address_uploaded,
	manual_review_approved, risk_score, risk_tier, risk_flags, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(a.ID), a.Email, string(a.Role), a.Country,
		a.CountrySupport.StripeSupported, a.CountrySupport.PlaidSupported, string(a.CountryRiskTier),
		string(a.KYCStatus), string(a.FallbackKYCStatus), a.PayoutBlocked,
		a.BankDocumentUploaded, a.ProofOfAddressUploaded, a.ManualReviewApproved,
		a.RiskScore, string(a.RiskTier), pq.Array(a.RiskFlags), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Account, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, uuid.UUID(userID))
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Execute(ctx context.Context, userID id.UserID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error) {
	var result *models.Account
	err := tx.Run(ctx, s.db, func(txCtx context.Context) error {
		exec := tx.Exec(txCtx, s.db)
		row := exec.QueryRowContext(txCtx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, uuid.UUID(userID))
		a, err := scanAccount(row)
		if err != nil {
			return err
		}
		if err := validate(a); err != nil {
			return err
		}
		mutate(a)

		_, err = exec.ExecContext(txCtx, `UPDATE accounts SET
				role = $2, country = $3, stripe_supported = $4, plaid_supported = $5, country_risk_tier = $6,
				kyc_status = $7, fallback_kyc_status = $8, payout_blocked = $9, bank_document_uploaded = $10,
				proof_of_address_uploaded = $11, manual_review_approved = $12, risk_score = $13, risk_tier = $14,
				risk_flags = $15, updated_at = $16
			WHERE id = $1`,
			uuid.UUID(a.ID), string(a.Role), a.Country,
			a.CountrySupport.StripeSupported, a.CountrySupport.PlaidSupported, string(a.CountryRiskTier),
			string(a.KYCStatus), string(a.FallbackKYCStatus), a.PayoutBlocked, a.BankDocumentUploaded,
			a.ProofOfAddressUploaded, a.ManualReviewApproved, a.RiskScore, string(a.RiskTier),
			pq.Array(a.RiskFlags), a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a                                 models.Account
		rawID                             uuid.UUID
		role, countryTier, kyc, fb, rTier string
		flags                             pq.StringArray
	)
	err := row.Scan(
		&rawID, &a.Email, &role, &a.Country,
		&a.CountrySupport.StripeSupported, &a.CountrySupport.PlaidSupported, &countryTier,
		&kyc, &fb, &a.PayoutBlocked, &a.BankDocumentUploaded, &a.ProofOfAddressUploaded,
		&a.ManualReviewApproved, &a.RiskScore, &rTier, &flags, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	a.ID = id.UserID(rawID)
	a.Role = compliance.Role(role)
	a.CountryRiskTier = compliance.CountryRiskTier(countryTier)
	a.KYCStatus = compliance.KYCStatus(kyc)
	a.FallbackKYCStatus = compliance.FallbackKYCStatus(fb)
	a.RiskTier = compliance.RiskTier(rTier)
	a.RiskFlags = []string(flags)
	if a.RiskFlags == nil {
		a.RiskFlags = []string{}
	}
	return &a, nil
}
