// Package sqlite provides a durable checkpoint.Store backed by SQLite. The
// log is a plain append-only table; a primary key on (thread_id, seq) turns
// interleaved appends from concurrent writers into constraint violations
// instead of corrupted state.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/agentloop/agentloop/checkpoint"
	"github.com/agentloop/agentloop/core"
)

const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id  TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		state      BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (thread_id, seq)
	);
`

// Store is a SQLite-backed checkpoint log.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the checkpoint database at path. WAL mode is
// enabled for better concurrency between readers and the single writer per
// thread.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing database handle, initializing the schema.
func NewFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Latest implements checkpoint.Store.
func (s *Store) Latest(ctx context.Context, threadID string) (*checkpoint.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, state, created_at FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
		threadID,
	)

	var (
		seq       int64
		blob      []byte
		createdAt int64
	)
	if err := row.Scan(&seq, &blob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state core.ConversationState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint state: %w", err)
	}

	return &checkpoint.Record{
		ThreadID:  threadID,
		Seq:       seq,
		State:     state,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

// Append implements checkpoint.Store. The sequence number is derived from the
// current maximum inside the insert itself; a concurrent writer racing for
// the same slot loses with a constraint violation rather than overwriting,
// and the insert is retried on the next sequence once.
func (s *Store) Append(ctx context.Context, threadID string, state core.ConversationState) (int64, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("failed to encode checkpoint state: %w", err)
	}

	now := time.Now().UTC().Unix()
	for attempt := 0; attempt < 2; attempt++ {
		var seq int64
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO checkpoints (thread_id, seq, state, created_at)
			 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints WHERE thread_id = ?), ?, ?)
			 RETURNING seq`,
			threadID, threadID, blob, now,
		).Scan(&seq)
		if err == nil {
			return seq, nil
		}
		if !isConstraintErr(err) {
			break
		}
	}
	return 0, fmt.Errorf("failed to append checkpoint: %w", err)
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
