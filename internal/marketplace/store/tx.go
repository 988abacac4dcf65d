package store

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"crowdfund/internal/marketplace/models"
	id "crowdfund/pkg/domain"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/tx"
)

// Store is the view of the marketplace store handed to a transaction.
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	FindProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error)
	FindProjectForUpdate(ctx context.Context, projectID id.ProjectID) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	CreateInvestment(ctx context.Context, inv *models.Investment) error
	FindInvestment(ctx context.Context, investmentID id.InvestmentID) (*models.Investment, error)
	UpdateInvestment(ctx context.Context, inv *models.Investment) error
	CreatePayout(ctx context.Context, p *models.Payout) error
	FindPayout(ctx context.Context, payoutID id.PayoutID) (*models.Payout, error)
	UpdatePayout(ctx context.Context, p *models.Payout) error
	InvestorPosition(ctx context.Context, projectID id.ProjectID, investorID id.UserID) (decimal.Decimal, error)
}

const (
	numProjectShards = 64
	defaultTxTimeout = 5 * time.Second
	txAbortedMessage = "transaction aborted: context cancelled"
)

// InMemoryTx serialises work on the same project with sharded mutexes.
type InMemoryTx struct {
	shards  [numProjectShards]sync.Mutex
	store   *InMemoryStore
	timeout time.Duration
}

func NewInMemoryTx(store *InMemoryStore) *InMemoryTx {
	return &InMemoryTx{store: store, timeout: defaultTxTimeout}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, projectID id.ProjectID, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, txAbortedMessage)
	}
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	shard := &t.shards[shardFor(projectID)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, txAbortedMessage)
	}
	return fn(ctx, t.store)
}

// PostgresTx runs fn in a database transaction bound to the context. Callers
// lock the project row first with FindProjectForUpdate.
type PostgresTx struct {
	db      *sql.DB
	store   *PostgresStore
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db, store: NewPostgres(db), timeout: defaultTxTimeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, _ id.ProjectID, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, txAbortedMessage)
	}
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	return tx.Run(ctx, t.db, func(txCtx context.Context) error {
		return fn(txCtx, t.store)
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func shardFor(projectID id.ProjectID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(projectID.String()))
	return int(h.Sum32() % numProjectShards)
}
