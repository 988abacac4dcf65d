// Package payouts hands approved payouts and withdrawals to the payment
// provider that moves the money.
package payouts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	id "crowdfund/pkg/domain"
	"crowdfund/pkg/requestcontext"
)

// Instruction is a single transfer to a user's bank account.
type Instruction struct {
	PayoutID  id.PayoutID
	ProjectID id.ProjectID
	UserID    id.UserID
	Kind      string
	Amount    decimal.Decimal
	Currency  string
}

// Provider moves money and returns the provider's transfer reference.
// Transfer is keyed by PayoutID: retrying an instruction that already moved
// money returns the original reference without moving it again.
type Provider interface {
	Transfer(ctx context.Context, in Instruction) (string, error)
}

// Sandbox accepts every transfer and logs it. Used when no live provider is
// configured.
type Sandbox struct {
	logger *slog.Logger

	mu        sync.Mutex
	failWith  error
	transfers []Instruction
	refs      map[id.PayoutID]string
}

func NewSandbox(logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{logger: logger, refs: map[id.PayoutID]string{}}
}

func (s *Sandbox) Transfer(ctx context.Context, in Instruction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[in.PayoutID]; ok {
		return ref, nil
	}
	if s.failWith != nil {
		return "", s.failWith
	}
	s.transfers = append(s.transfers, in)
	ref := fmt.Sprintf("sbx_%s", in.PayoutID)
	s.refs[in.PayoutID] = ref
	s.logger.InfoContext(ctx, "sandbox transfer accepted",
		"request_id", requestcontext.RequestID(ctx),
		"payout_id", in.PayoutID,
		"user_id", in.UserID,
		"kind", in.Kind,
		"amount", in.Amount.StringFixed(2),
		"currency", in.Currency,
		"reference", ref,
	)
	return ref, nil
}

// FailWith makes every later Transfer return err. Pass nil to recover.
func (s *Sandbox) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Transfers returns the accepted instructions in order.
func (s *Sandbox) Transfers() []Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Instruction, len(s.transfers))
	copy(out, s.transfers)
	return out
}
