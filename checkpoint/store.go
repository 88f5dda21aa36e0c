package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/agentloop/agentloop/core"
)

// ErrNotFound is returned by Latest when a thread has no checkpoints yet.
var ErrNotFound = errors.New("checkpoint not found")

// Record is one entry of the append-only checkpoint log. The latest record
// per thread id is the resumable state.
type Record struct {
	ThreadID  string                 `json:"thread_id"`
	Seq       int64                  `json:"step_sequence_no"`
	State     core.ConversationState `json:"state_snapshot"`
	CreatedAt time.Time              `json:"timestamp"`
}

// Store persists conversation state snapshots keyed by thread id.
//
// Contract:
//   - Append assigns the next sequence number for the thread (creating the
//     log if absent) and must never silently drop a write: any failure is
//     reported so the caller can abort the turn.
//   - Concurrent appends for the same thread must not interleave into a
//     corrupted log. Implementations enforce this with a uniqueness check on
//     (thread id, sequence) or equivalent.
type Store interface {
	// Latest returns the most recent record for the thread, or ErrNotFound.
	Latest(ctx context.Context, threadID string) (*Record, error)
	// Append writes a new snapshot and returns its sequence number.
	Append(ctx context.Context, threadID string, state core.ConversationState) (int64, error)
}
