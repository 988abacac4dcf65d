package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one recorded outcome and the expected breaker state after it.
type step struct {
	fail     bool
	wantOpen bool
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the threshold failure",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{fail: true, wantOpen: false},
				{fail: true, wantOpen: false},
				{fail: true, wantOpen: true},
			},
		},
		{
			name: "success while closed clears the failure streak",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: false},
				{fail: false, wantOpen: false},
				{fail: true, wantOpen: false},
				{fail: true, wantOpen: true},
			},
		},
		{
			name: "closes after the success threshold",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true},
				{fail: false, wantOpen: true},
				{fail: false, wantOpen: false},
			},
		},
		{
			name: "failure while open restarts the recovery streak",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, wantOpen: true},
				{fail: false, wantOpen: true},
				{fail: true, wantOpen: true},
				{fail: false, wantOpen: true},
				{fail: false, wantOpen: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("payouts", tt.opts...)
			for i, s := range tt.steps {
				if s.fail {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				require.Equal(t, s.wantOpen, b.IsOpen(), "after step %d", i)
			}
		})
	}
}

func TestBreakerReportsTransitionsOnce(t *testing.T) {
	b := New("genai", WithFailureThreshold(1), WithSuccessThreshold(1))
	assert.Equal(t, "genai", b.Name())
	assert.Equal(t, "closed", b.State().String())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.False(t, change.Closed, "already closed")
}

func TestBreakerReset(t *testing.T) {
	b := New("payouts", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerAllowsTrialAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New("payouts", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(59 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(2 * time.Second)
	assert.True(t, b.Allow(), "trial call allowed once cooldown elapsed")
	assert.True(t, b.IsOpen(), "allowing a trial call does not close the breaker")

	b.RecordFailure()
	assert.False(t, b.Allow(), "a failed trial call restarts the cooldown")
}
