package core

import (
	"context"

	"github.com/agentloop/agentloop/logging"
)

// RunContext carries the per-turn execution scope handed to state-machine
// nodes and tools. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (ThreadID, UserID, TurnID)
//   - A turn-scoped logger that stamps every record with the identifiers
type RunContext struct {
	Context  context.Context
	ThreadID string
	UserID   string
	TurnID   string

	logger logging.Logger
}

// NewRunContext constructs a RunContext for one turn. A nil logger is
// replaced with a NoOpLogger so callers never need to guard log calls.
func NewRunContext(ctx context.Context, threadID, userID, turnID string, logger logging.Logger) *RunContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &RunContext{
		Context:  ctx,
		ThreadID: threadID,
		UserID:   userID,
		TurnID:   turnID,
		logger:   logger,
	}
}

// Logger returns the turn's logger.
func (rc *RunContext) Logger() logging.Logger { return rc.logger }

// scoped prepends the turn identifiers so every record written through the
// RunContext can be correlated to its thread and turn.
func (rc *RunContext) scoped(args []any) []any {
	scoped := make([]any, 0, len(args)+4)
	scoped = append(scoped, "thread_id", rc.ThreadID, "turn_id", rc.TurnID)
	return append(scoped, args...)
}

// LogDebug logs a debug message stamped with the turn identifiers.
func (rc *RunContext) LogDebug(msg string, args ...any) {
	rc.logger.Debug(msg, rc.scoped(args)...)
}

// LogInfo logs an info message stamped with the turn identifiers.
func (rc *RunContext) LogInfo(msg string, args ...any) {
	rc.logger.Info(msg, rc.scoped(args)...)
}

// LogWarn logs a warning message stamped with the turn identifiers.
func (rc *RunContext) LogWarn(msg string, args ...any) {
	rc.logger.Warn(msg, rc.scoped(args)...)
}

// LogError logs an error message stamped with the turn identifiers.
func (rc *RunContext) LogError(msg string, args ...any) {
	rc.logger.Error(msg, rc.scoped(args)...)
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }
