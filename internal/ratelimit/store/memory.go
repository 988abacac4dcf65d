package store

import (
	"context"
	"sync"
	"time"

	"crowdfund/internal/ratelimit/models"
)

// InMemory is a process-local sliding window. Counts are not shared between
// replicas; use Redis when running more than one.
type InMemory struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
}

func NewInMemory() *InMemory {
	return NewInMemoryWithClock(time.Now)
}

func NewInMemoryWithClock(now func() time.Time) *InMemory {
	return &InMemory{now: now, windows: make(map[string]*slidingWindow)}
}

func (s *InMemory) Allow(_ context.Context, key string, limit models.Limit) (models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.windows[key]
	if w == nil {
		w = &slidingWindow{}
		s.windows[key] = w
	}
	w.cleanup(now, limit.Window)

	if len(w.timestamps) >= limit.Requests {
		return models.Result{
			Allowed: false,
			Limit:   limit.Requests,
			ResetAt: w.timestamps[0].Add(limit.Window),
		}, nil
	}
	w.timestamps = append(w.timestamps, now)
	return models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(w.timestamps),
		ResetAt:   w.timestamps[0].Add(limit.Window),
	}, nil
}

// Reset drops the window for key.
func (s *InMemory) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

func (w *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}
