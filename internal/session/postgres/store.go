// Package postgres provides a PostgreSQL-backed session trajectory store.
//
// Trajectories are stored as pgvector vector(3) values, one row per session,
// so that multiple server instances behind a load balancer share smoothing
// state. The pgvector extension must be available in the target database;
// [Migrate] installs it automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 30*time.Minute)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/sainte-ai/emotion-engine/internal/blend"
	"github.com/sainte-ai/emotion-engine/internal/session"
)

// Compile-time interface assertion.
var _ session.Store = (*Store)(nil)

const ddlSessions = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS emotion_sessions (
    session_id  TEXT         PRIMARY KEY,
    trajectory  vector(3)    NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_emotion_sessions_updated_at
    ON emotion_sessions (updated_at);
`

// Store is a PostgreSQL-backed [session.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure the sessions table and vector extension exist.
//
// ttl is the idle expiry applied on Load; rows older than ttl are treated as
// absent and purged opportunistically. A non-positive ttl keeps rows forever.
func NewStore(ctx context.Context, dsn string, ttl time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("session store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that the trajectory
	// column can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session store: migrate: %w", err)
	}

	return &Store{pool: pool, ttl: ttl}, nil
}

// Migrate creates or ensures the sessions table and vector extension exist.
// It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessions); err != nil {
		return fmt.Errorf("session migrate: %w", err)
	}
	return nil
}

// Load implements [session.Store]. Rows idle for longer than the configured
// TTL are treated as absent.
func (s *Store) Load(ctx context.Context, sessionID string) (blend.Distribution, bool, error) {
	q := `SELECT trajectory FROM emotion_sessions WHERE session_id = $1`
	args := []any{sessionID}
	if s.ttl > 0 {
		q += ` AND updated_at > now() - $2::interval`
		args = append(args, s.ttl.String())
	}

	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx, q, args...).Scan(&vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return blend.Distribution{}, false, nil
	}
	if err != nil {
		return blend.Distribution{}, false, fmt.Errorf("session store: load %q: %w", sessionID, err)
	}

	sl := vec.Slice()
	if len(sl) != 3 {
		return blend.Distribution{}, false, fmt.Errorf("session store: trajectory for %q has %d dimensions, want 3", sessionID, len(sl))
	}
	return blend.Distribution{
		Calm:    float64(sl[0]),
		Guarded: float64(sl[1]),
		Lit:     float64(sl[2]),
	}, true, nil
}

// Save implements [session.Store] with an upsert keyed on session_id.
func (s *Store) Save(ctx context.Context, sessionID string, dist blend.Distribution) error {
	const q = `
		INSERT INTO emotion_sessions (session_id, trajectory, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET
		    trajectory = EXCLUDED.trajectory,
		    updated_at = EXCLUDED.updated_at`

	vec := pgvector.NewVector([]float32{
		float32(dist.Calm),
		float32(dist.Guarded),
		float32(dist.Lit),
	})
	if _, err := s.pool.Exec(ctx, q, sessionID, vec); err != nil {
		return fmt.Errorf("session store: save %q: %w", sessionID, err)
	}
	return nil
}

// Forget implements [session.Store].
func (s *Store) Forget(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM emotion_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("session store: forget %q: %w", sessionID, err)
	}
	return nil
}

// PurgeExpired deletes rows idle for longer than the configured TTL and
// returns how many were removed. Intended to be called periodically from a
// maintenance goroutine; a no-op when the store has no TTL.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM emotion_sessions WHERE updated_at <= now() - $1::interval`, s.ttl.String())
	if err != nil {
		return 0, fmt.Errorf("session store: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping reports whether the database is reachable. Suitable as a readiness
// checker.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
