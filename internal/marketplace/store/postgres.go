package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"crowdfund/internal/compliance"
	"crowdfund/internal/marketplace/models"
	"crowdfund/internal/platform/postgres"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/platform/sentinel"
	"crowdfund/pkg/platform/tx"
)

// PostgresStore persists projects, investments and payouts. It joins any
// transaction bound to the context by PostgresTx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const projectColumns = `id, owner_id, title, summary, funding_model, goal, raised, disbursed, status,
	decision, decision_reason, requires_manual_review, created_at, updated_at`

const investmentColumns = `id, project_id, investor_id, amount, status,
	decision, decision_reason, requires_manual_review, created_at, updated_at`

const payoutColumns = `id, project_id, user_id, kind, amount, status,
	decision, decision_reason, requires_manual_review, provider_reference, failure_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	decision, reason, review := nullableDecision(p.Decision)
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(p.ID), uuid.UUID(p.OwnerID), p.Title, p.Summary, string(p.FundingModel),
		p.Goal, p.Raised, p.Disbursed, string(p.Status), decision, reason, review, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	return s.findProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
}

func (s *PostgresStore) FindProjectForUpdate(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	return s.findProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, projectID)
}

func (s *PostgresStore) findProject(ctx context.Context, query string, projectID id.ProjectID) (*models.Project, error) {
	p, err := scanProject(tx.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(projectID)))
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p *models.Project) error {
	decision, reason, review := nullableDecision(p.Decision)
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `UPDATE projects SET
			title = $2, summary = $3, raised = $4, disbursed = $5, status = $6,
			decision = $7, decision_reason = $8, requires_manual_review = $9, updated_at = $10
		WHERE id = $1`,
		uuid.UUID(p.ID), p.Title, p.Summary, p.Raised, p.Disbursed, string(p.Status),
		decision, reason, review, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CreateInvestment(ctx context.Context, inv *models.Investment) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO investments (`+investmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(inv.ID), uuid.UUID(inv.ProjectID), uuid.UUID(inv.InvestorID), inv.Amount, string(inv.Status),
		string(inv.Decision.Outcome), inv.Decision.Reason, inv.Decision.RequiresManualReview,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindInvestment(ctx context.Context, investmentID id.InvestmentID) (*models.Investment, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = $1`, uuid.UUID(investmentID))
	inv, err := scanInvestment(row)
	if err != nil {
		return nil, fmt.Errorf("find investment: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) UpdateInvestment(ctx context.Context, inv *models.Investment) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `UPDATE investments SET
			status = $2, decision = $3, decision_reason = $4, requires_manual_review = $5, updated_at = $6
		WHERE id = $1`,
		uuid.UUID(inv.ID), string(inv.Status), string(inv.Decision.Outcome), inv.Decision.Reason,
		inv.Decision.RequiresManualReview, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update investment: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CreatePayout(ctx context.Context, p *models.Payout) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO payouts (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(p.ID), uuid.UUID(p.ProjectID), uuid.UUID(p.UserID), string(p.Kind), p.Amount, string(p.Status),
		string(p.Decision.Outcome), p.Decision.Reason, p.Decision.RequiresManualReview,
		nullString(p.ProviderReference), nullString(p.FailureReason), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindPayout(ctx context.Context, payoutID id.PayoutID) (*models.Payout, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, uuid.UUID(payoutID))
	p, err := scanPayout(row)
	if err != nil {
		return nil, fmt.Errorf("find payout: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePayout(ctx context.Context, p *models.Payout) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `UPDATE payouts SET
			status = $2, decision = $3, decision_reason = $4, requires_manual_review = $5,
			provider_reference = $6, failure_reason = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(p.ID), string(p.Status), string(p.Decision.Outcome), p.Decision.Reason,
		p.Decision.RequiresManualReview, nullString(p.ProviderReference), nullString(p.FailureReason), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) InvestorPosition(ctx context.Context, projectID id.ProjectID, investorID id.UserID) (decimal.Decimal, error) {
	var position decimal.Decimal
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM investments
				WHERE project_id = $1 AND investor_id = $2 AND status = 'approved')
			-
			(SELECT COALESCE(SUM(amount), 0) FROM payouts
				WHERE project_id = $1 AND user_id = $2 AND kind = 'withdrawal'
				AND status IN ('pending_review', 'approved', 'transferred'))`,
		uuid.UUID(projectID), uuid.UUID(investorID),
	).Scan(&position)
	if err != nil {
		return decimal.Zero, fmt.Errorf("investor position: %w", err)
	}
	return position, nil
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p                    models.Project
		rawID, rawOwner      uuid.UUID
		fundingModel, status string
		decision, reason     sql.NullString
		requiresManualReview bool
	)
	err := row.Scan(&rawID, &rawOwner, &p.Title, &p.Summary, &fundingModel, &p.Goal, &p.Raised, &p.Disbursed,
		&status, &decision, &reason, &requiresManualReview, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	p.ID = id.ProjectID(rawID)
	p.OwnerID = id.UserID(rawOwner)
	p.FundingModel = models.FundingModel(fundingModel)
	p.Status = models.ProjectStatus(status)
	if decision.Valid {
		p.Decision = &compliance.Decision{
			Outcome:              compliance.Outcome(decision.String),
			Reason:               reason.String,
			RequiresManualReview: requiresManualReview,
		}
	}
	return &p, nil
}

func scanInvestment(row rowScanner) (*models.Investment, error) {
	var (
		inv                            models.Investment
		rawID, rawProject, rawInvestor uuid.UUID
		status                         string
		decision, reason               sql.NullString
	)
	err := row.Scan(&rawID, &rawProject, &rawInvestor, &inv.Amount, &status,
		&decision, &reason, &inv.Decision.RequiresManualReview, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	inv.ID = id.InvestmentID(rawID)
	inv.ProjectID = id.ProjectID(rawProject)
	inv.InvestorID = id.UserID(rawInvestor)
	inv.Status = models.InvestmentStatus(status)
	inv.Decision.Outcome = compliance.Outcome(decision.String)
	inv.Decision.Reason = reason.String
	return &inv, nil
}

func scanPayout(row rowScanner) (*models.Payout, error) {
	var (
		p                                 models.Payout
		rawID, rawProject, rawUser        uuid.UUID
		kind, status                      string
		decision, reason, ref, failReason sql.NullString
	)
	err := row.Scan(&rawID, &rawProject, &rawUser, &kind, &p.Amount, &status,
		&decision, &reason, &p.Decision.RequiresManualReview, &ref, &failReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	p.ID = id.PayoutID(rawID)
	p.ProjectID = id.ProjectID(rawProject)
	p.UserID = id.UserID(rawUser)
	p.Kind = models.PayoutKind(kind)
	p.Status = models.PayoutStatus(status)
	p.Decision.Outcome = compliance.Outcome(decision.String)
	p.Decision.Reason = reason.String
	p.ProviderReference = ref.String
	p.FailureReason = failReason.String
	return &p, nil
}

func nullableDecision(d *compliance.Decision) (sql.NullString, sql.NullString, bool) {
	if d == nil {
		return sql.NullString{}, sql.NullString{}, false
	}
	return sql.NullString{String: string(d.Outcome), Valid: true},
		sql.NullString{String: d.Reason, Valid: true},
		d.RequiresManualReview
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
