package runner

import (
	"context"
	"time"

	"github.com/agentloop/agentloop/core"
)

// TurnLimiter bounds the number of turns executing at once. Acquire waits up
// to the configured timeout for a slot before giving up.
type TurnLimiter struct {
	slots   chan struct{}
	timeout time.Duration
}

// NewTurnLimiter creates a limiter for max concurrent turns. max <= 0 means
// unlimited.
func NewTurnLimiter(max int, timeout time.Duration) *TurnLimiter {
	l := &TurnLimiter{timeout: timeout}
	if max > 0 {
		l.slots = make(chan struct{}, max)
	}
	return l
}

// Acquire claims a slot, returning core.ErrTurnCapacity when none frees up
// within the timeout.
func (l *TurnLimiter) Acquire(ctx context.Context) (release func(), err error) {
	if l.slots == nil {
		return func() {}, nil
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	case <-timer.C:
		return nil, core.ErrTurnCapacity
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Active returns the number of slots currently held.
func (l *TurnLimiter) Active() int {
	if l.slots == nil {
		return 0
	}
	return len(l.slots)
}
