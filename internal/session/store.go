// Package session provides storage for per-session emotion trajectories.
//
// The blended emotion endpoint smooths each new distribution against the
// previous one for the same session. The [Store] interface abstracts where
// that previous distribution lives: in process memory ([Memory]) for a single
// instance, or in PostgreSQL ([postgres.Store]) when multiple instances share
// state.
package session

import (
	"context"

	"github.com/sainte-ai/emotion-engine/internal/blend"
)

// Store persists the most recent emotion distribution per session.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the stored distribution for the session and whether one
	// exists. A missing or expired session is (zero, false, nil).
	Load(ctx context.Context, sessionID string) (blend.Distribution, bool, error)

	// Save stores the distribution as the session's new trajectory point,
	// resetting its idle timer.
	Save(ctx context.Context, sessionID string, dist blend.Distribution) error

	// Forget removes the session's trajectory. Forgetting an unknown
	// session is not an error.
	Forget(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store.
	Close()
}
