package guard

import (
	"context"
	"sync"
	"time"
)

// IdempotencyGuard remembers request keys for a retention period so a replayed
// undo is applied once. Keys are undo tokens sent as X-Idempotency-Key.
type IdempotencyGuard struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewIdempotencyGuard keeps keys for retention; zero keeps them forever.
func NewIdempotencyGuard(retention time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

// Check claims key. A second claim within the retention period is rejected.
// An empty key is always allowed.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) Result {
	if key == "" {
		return allow()
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	now := ig.now()
	if at, ok := ig.seen[key]; ok && !ig.expired(at, now) {
		return Result{
			Reason: "duplicate request: idempotency key already processed",
			Guard:  "idempotency",
		}
	}
	ig.seen[key] = now
	return allow()
}

// Remove releases a key so the request can be retried, used when the guarded
// operation failed.
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.seen, key)
}

// Sweep forgets expired keys.
func (ig *IdempotencyGuard) Sweep() {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	now := ig.now()
	for k, at := range ig.seen {
		if ig.expired(at, now) {
			delete(ig.seen, k)
		}
	}
}

func (ig *IdempotencyGuard) expired(at, now time.Time) bool {
	return ig.retention > 0 && now.Sub(at) > ig.retention
}
