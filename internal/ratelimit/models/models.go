package models

import (
	"fmt"
	"time"
)

// Class groups routes that share a request budget.
type Class string

const (
	// ClassDefault covers reads and ordinary writes.
	ClassDefault Class = "default"
	// ClassMoney covers investments, payouts and withdrawals.
	ClassMoney Class = "money"
	// ClassFlows covers the LLM-backed generators.
	ClassFlows Class = "flows"
)

// Limit is a sliding-window budget: at most Requests within any Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

func (l Limit) Validate() error {
	if l.Requests < 1 {
		return fmt.Errorf("limit must allow at least one request, got %d", l.Requests)
	}
	if l.Window <= 0 {
		return fmt.Errorf("limit window must be positive, got %s", l.Window)
	}
	return nil
}

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a denied caller should wait, rounded up to a second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	return (d + time.Second - 1) / time.Second * time.Second
}

// Key builds the bucket key for a subject within a class.
func Key(class Class, subject string) string {
	return "rl:" + string(class) + ":" + subject
}
