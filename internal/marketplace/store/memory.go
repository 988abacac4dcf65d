package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"crowdfund/internal/marketplace/models"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/platform/sentinel"
)

// InMemoryStore keeps marketplace entities in maps. Each call is atomic on its
// own; multi-step changes are serialised per project by InMemoryTx.
type InMemoryStore struct {
	mu          sync.RWMutex
	projects    map[id.ProjectID]*models.Project
	investments map[id.InvestmentID]*models.Investment
	payouts     map[id.PayoutID]*models.Payout
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		projects:    make(map[id.ProjectID]*models.Project),
		investments: make(map[id.InvestmentID]*models.Investment),
		payouts:     make(map[id.PayoutID]*models.Payout),
	}
}

func (s *InMemoryStore) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return sentinel.ErrConflict
	}
	s.projects[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) FindProject(_ context.Context, projectID id.ProjectID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// FindProjectForUpdate is FindProject; InMemoryTx already holds the project.
func (s *InMemoryStore) FindProjectForUpdate(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	return s.FindProject(ctx, projectID)
}

func (s *InMemoryStore) UpdateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.projects[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) CreateInvestment(_ context.Context, inv *models.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investments[inv.ID]; ok {
		return sentinel.ErrConflict
	}
	s.investments[inv.ID] = inv.Clone()
	return nil
}

func (s *InMemoryStore) FindInvestment(_ context.Context, investmentID id.InvestmentID) (*models.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investments[investmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return inv.Clone(), nil
}

func (s *InMemoryStore) UpdateInvestment(_ context.Context, inv *models.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investments[inv.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.investments[inv.ID] = inv.Clone()
	return nil
}

func (s *InMemoryStore) CreatePayout(_ context.Context, p *models.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payouts[p.ID]; ok {
		return sentinel.ErrConflict
	}
	s.payouts[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) FindPayout(_ context.Context, payoutID id.PayoutID) (*models.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payouts[payoutID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) UpdatePayout(_ context.Context, p *models.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payouts[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.payouts[p.ID] = p.Clone()
	return nil
}

// InvestorPosition is the investor's approved stake in the project less
// withdrawals that still hold funds.
func (s *InMemoryStore) InvestorPosition(_ context.Context, projectID id.ProjectID, investorID id.UserID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, inv := range s.investments {
		if inv.ProjectID == projectID && inv.InvestorID == investorID && inv.Status == models.InvestmentApproved {
			total = total.Add(inv.Amount)
		}
	}
	for _, p := range s.payouts {
		if p.ProjectID == projectID && p.UserID == investorID && p.Kind == models.KindWithdrawal && p.Status.HoldsFunds() {
			total = total.Sub(p.Amount)
		}
	}
	return total, nil
}
