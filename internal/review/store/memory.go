package store

import (
	"context"
	"sort"
	"sync"

	"crowdfund/internal/review/models"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/platform/sentinel"
)

// InMemoryStore keeps review items in process memory.
type InMemoryStore struct {
	mu    sync.Mutex
	items map[id.ReviewID]*models.Item
	open  map[string]id.ReviewID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[id.ReviewID]*models.Item),
		open:  make(map[string]id.ReviewID),
	}
}

// Add stores item unless an open item already covers the same entity, in
// which case the existing item is returned with created=false.
func (s *InMemoryStore) Add(_ context.Context, item *models.Item) (*models.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.open[item.DedupeKey()]; ok {
		return s.items[existing].Clone(), false, nil
	}
	if _, ok := s.items[item.ID]; ok {
		return nil, false, sentinel.ErrConflict
	}
	s.items[item.ID] = item.Clone()
	s.open[item.DedupeKey()] = item.ID
	return item.Clone(), true, nil
}

func (s *InMemoryStore) Get(_ context.Context, reviewID id.ReviewID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[reviewID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return item.Clone(), nil
}

// ListOpen returns open items oldest first. limit <= 0 means no limit.
func (s *InMemoryStore) ListOpen(_ context.Context, limit int) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Item, 0, len(s.open))
	for _, reviewID := range s.open {
		out = append(out, s.items[reviewID].Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Execute applies mutate to a copy of the item when validate passes and keeps
// the open index in step with the resulting status.
func (s *InMemoryStore) Execute(_ context.Context, reviewID id.ReviewID, validate func(*models.Item) error, mutate func(*models.Item)) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[reviewID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	key := working.DedupeKey()
	switch working.Status {
	case models.StatusOpen:
		if other, taken := s.open[key]; taken && other != reviewID {
			return nil, sentinel.ErrConflict
		}
		s.open[key] = reviewID
	case models.StatusResolved:
		if s.open[key] == reviewID {
			delete(s.open, key)
		}
	}
	s.items[reviewID] = working
	return working.Clone(), nil
}
