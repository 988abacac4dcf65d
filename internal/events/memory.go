package events

import (
	"context"
	"sync"
)

// Memory keeps published events in order. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []DecisionEvent
	err    error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event DecisionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

// FailWith makes every later Publish return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []DecisionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DecisionEvent, len(m.events))
	copy(out, m.events)
	return out
}
