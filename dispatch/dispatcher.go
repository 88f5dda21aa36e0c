package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentloop/agentloop/core"
	"github.com/agentloop/agentloop/logging"
	"github.com/agentloop/agentloop/model"
)

// Options configure retry and fallback behavior.
type Options struct {
	// MaxAttempts is the number of invocation attempts per backend before
	// rotating to the next one.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; each further
	// attempt doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Start selects the initial cursor position by backend name. Empty
	// selects the first (highest-priority) backend.
	Start string
	// Logger receives retry and rotation events.
	Logger logging.Logger
}

// Dispatcher invokes a ranked list of model backends with local retry and
// circular fallback.
//
// The registry order is fixed at construction; a shared cursor marks the
// current backend. One Call gives the current backend up to MaxAttempts
// tries, backing off exponentially between attempts and retrying only
// transient failures. A structural failure ends the backend's attempts
// immediately but still counts as backend failure. When a backend exhausts
// its attempts the cursor advances circularly and the next backend gets a
// fresh attempt budget, until one succeeds or all have been tried once in
// this call.
//
// The cursor is sticky: success does not move it back to the first backend,
// so later calls resume wherever the previous call ended. This avoids
// flapping back onto a still-struggling primary.
//
// Tool definitions travel inside each Request, so after any rotation the
// newly current backend receives the same tool set as its predecessor.
type Dispatcher struct {
	backends []model.Backend
	opts     Options

	mu     sync.Mutex
	cursor int
}

// New constructs a Dispatcher over the given backends, in priority order.
func New(backends []model.Backend, optFns ...func(o *Options)) (*Dispatcher, error) {
	if len(backends) == 0 {
		return nil, errors.New("dispatch: at least one backend is required")
	}

	opts := Options{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    8 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		return nil, fmt.Errorf("dispatch: max attempts must be >= 1, got %d", opts.MaxAttempts)
	}

	cursor := 0
	if opts.Start != "" {
		found := false
		for i, b := range backends {
			if b.Info().Name == opts.Start {
				cursor = i
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("dispatch: start backend %q not registered", opts.Start)
		}
	}

	return &Dispatcher{backends: backends, opts: opts, cursor: cursor}, nil
}

// Current returns the name of the backend the cursor points at.
func (d *Dispatcher) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backends[d.cursor].Info().Name
}

// Call invokes the current backend, retrying and rotating as needed. It
// returns the first successful assistant message, or a terminal
// *core.AllBackendsExhaustedError once every backend has been tried once.
func (d *Dispatcher) Call(ctx context.Context, req model.Request) (core.Message, error) {
	n := len(d.backends)

	d.mu.Lock()
	start := d.cursor
	d.mu.Unlock()

	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		backend := d.backends[idx]

		d.mu.Lock()
		d.cursor = idx
		d.mu.Unlock()

		msg, err := d.callBackend(ctx, backend, req)
		if err == nil {
			return msg, nil
		}
		if ctx.Err() != nil {
			return core.Message{}, ctx.Err()
		}
		lastErr = err

		d.opts.Logger.Warn("dispatch.backend.exhausted",
			"backend", backend.Info().Name,
			"error", err.Error(),
			"remaining", n-i-1,
		)
	}

	return core.Message{}, &core.AllBackendsExhaustedError{Attempted: n, LastErr: lastErr}
}

// callBackend runs the per-backend attempt loop with exponential backoff.
func (d *Dispatcher) callBackend(ctx context.Context, backend model.Backend, req model.Request) (core.Message, error) {
	name := backend.Info().Name

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		msg, err := backend.Invoke(ctx, req)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		if !core.IsTransient(err) {
			d.opts.Logger.Warn("dispatch.backend.structural_error", "backend", name, "error", err.Error())
			return core.Message{}, err
		}
		if attempt == d.opts.MaxAttempts {
			break
		}

		delay := d.backoff(attempt)
		d.opts.Logger.Info("dispatch.backend.retry",
			"backend", name,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return core.Message{}, fmt.Errorf("backend %s exhausted after %d attempts: %w", name, d.opts.MaxAttempts, lastErr)
}

// backoff returns the delay before attempt+1: BaseDelay doubled per attempt,
// capped at MaxDelay.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.opts.BaseDelay << (attempt - 1)
	if delay > d.opts.MaxDelay || delay <= 0 {
		delay = d.opts.MaxDelay
	}
	return delay
}
