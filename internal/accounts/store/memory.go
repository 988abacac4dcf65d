package store

import (
	"context"
	"sync"

	"crowdfund/internal/accounts/models"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in a map guarded by a single RWMutex. Execute
// holds the write lock across validate and mutate.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.Account
	byEmail map[string]id.UserID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.UserID]*models.Account),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[account.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byEmail[account.Email]; ok {
		return sentinel.ErrConflict
	}
	s.byID[account.ID] = account.Clone()
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[userID].Clone(), nil
}

// Execute runs validate then mutate on a working copy and commits it only when
// validate succeeds.
func (s *InMemoryStore) Execute(_ context.Context, userID id.UserID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.byID[userID] = working
	return working.Clone(), nil
}
