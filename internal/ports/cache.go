package ports

import (
	"context"
	"time"
)

// RateLimitStore tracks fixed-window request counters. The increment must be
// atomic on the backend (no read-modify-write), so concurrent requests for
// the same key never lose counts.
type RateLimitStore interface {
	// Increment adds one hit to the window keyed by key, arming the window
	// TTL on first hit. It returns the new count and the time remaining
	// until the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, retryAfter time.Duration, err error)
}

// LockStore holds short-TTL actuation locks. Checking and acquiring are
// separate on purpose: job creation checks both lock scopes before the
// idempotent-reuse lookup but only arms them on the path that inserts a new
// job, so duplicate requests cannot keep extending the lockout.
type LockStore interface {
	// Check reports whether the lock is currently held and, if so, for how
	// much longer.
	Check(ctx context.Context, key string) (held bool, retryAfter time.Duration, err error)
	// Acquire arms the lock for ttl. The lock models "recently actuated";
	// it expires on its own and is never explicitly released.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
}
