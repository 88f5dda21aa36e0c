// Package sqlitevec provides a FactStore backed by SQLite with the
// sqlite-vec extension for vector similarity search.
package sqlitevec

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentloop/agentloop/logging"
	"github.com/agentloop/agentloop/memory"
)

func init() {
	sqlite_vec.Auto()
}

// Options configure a Store.
type Options struct {
	// Logger receives store events.
	Logger logging.Logger
}

// Store persists facts in SQLite and indexes them with sqlite-vec for
// cosine-distance retrieval.
type Store struct {
	db       *sql.DB
	embedder memory.EmbeddingProvider
	logger   logging.Logger
}

// New opens (or creates) the database at path and ensures the schema.
func New(path string, embedder memory.EmbeddingProvider, optFns ...func(o *Options)) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store, err := NewFromDB(db, embedder, optFns...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewFromDB wraps an existing connection. The sqlite-vec extension must be
// registered on the driver.
func NewFromDB(db *sql.DB, embedder memory.EmbeddingProvider, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS fact_embeddings USING vec0(
			fact_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, embedder.Dimension())
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, embedder: embedder, logger: opts.Logger}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert implements memory.FactStore. Facts are write-once: a duplicate text
// for the same user is skipped without re-embedding. The fact row and its
// embedding commit in a single transaction, so a failure at any point leaves
// the fact absent rather than half-written.
func (s *Store) Upsert(ctx context.Context, fact memory.Fact) error {
	id := factID(fact.UserID, fact.Text)

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM facts WHERE id = ?`, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check fact: %w", err)
	}
	if exists > 0 {
		return nil
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, fact.Text)
	if err != nil {
		return fmt.Errorf("embed fact: %w", err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO facts (id, user_id, text, created_at) VALUES (?, ?, ?, ?)`,
		id, fact.UserID, fact.Text, fact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}
	if inserted == 0 {
		// a concurrent writer got there first
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fact_embeddings (fact_id, embedding) VALUES (?, ?)`,
		id, string(embeddingJSON),
	); err != nil {
		return fmt.Errorf("index fact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	s.logger.Debug("memory.store.upsert", "user_id", fact.UserID, "fact_id", id)
	return nil
}

// Search implements memory.FactStore.
func (s *Store) Search(ctx context.Context, userID, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.text, vec_distance_cosine(e.embedding, ?) AS distance
		FROM fact_embeddings e
		JOIN facts f ON f.id = e.fact_id
		WHERE f.user_id = ?
		ORDER BY distance ASC
		LIMIT ?`,
		string(embeddingJSON), userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var facts []string
	for rows.Next() {
		var text string
		var distance float64
		if err := rows.Scan(&text, &distance); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, text)
	}
	return facts, rows.Err()
}

func factID(userID, text string) string {
	sum := sha256.Sum256([]byte(userID + "\n" + text))
	return hex.EncodeToString(sum[:])
}
