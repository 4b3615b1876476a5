package domain

import (
	"context"
	"time"
)

// LockManager provides the exclusive, non-reentrant per-market operation
// lock. Every state-mutating entry point holds the market's lock for its
// duration so no two mutations of the same market can interleave.
type LockManager interface {
	// Acquire obtains the lock for key, returning an unlock function. It
	// returns ErrLockHeld when another holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// MarketCache is a read-through cache for market records serving the
// read-only API surface. Cache failures are never fatal.
type MarketCache interface {
	Get(ctx context.Context, id string) (Market, error)
	Set(ctx context.Context, m Market) error
	Invalidate(ctx context.Context, id string) error
}

// SignalBus publishes engine events to observers: ephemeral pub/sub for live
// consumers plus durable ordered streams for replay.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter enforces per-caller request budgets on the API surface.
type RateLimiter interface {
	// Allow reports whether the caller identified by key may proceed,
	// consuming one slot from a window of limit requests, and how many
	// slots remain in the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}
