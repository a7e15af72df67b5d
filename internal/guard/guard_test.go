package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "10.0.0.1")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(2, time.Minute)
	rl.now = clock.now
	ctx := context.Background()

	rl.Check(ctx, "10.0.0.1")
	clock.advance(10 * time.Second)
	rl.Check(ctx, "10.0.0.1")
	result := rl.Check(ctx, "10.0.0.1")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
	assert.Equal(t, 50*time.Second, result.RetryAfter)

	clock.advance(51 * time.Second)
	assert.True(t, rl.Check(ctx, "10.0.0.1").Allowed)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	r1 := rl.Check(ctx, "key-a")
	r2 := rl.Check(ctx, "key-b")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestRateLimiter_DisabledAndSweep(t *testing.T) {
	off := NewRateLimiter(0, time.Minute)
	for i := 0; i < 10; i++ {
		assert.True(t, off.Check(context.Background(), "k").Allowed)
	}

	clock := newClock()
	rl := NewRateLimiter(5, time.Minute)
	rl.now = clock.now
	rl.Check(context.Background(), "a")
	rl.Check(context.Background(), "b")
	clock.advance(2 * time.Minute)
	rl.Check(context.Background(), "c")
	rl.Sweep()
	assert.Equal(t, 1, rl.Keys())
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second)
	result := cb.Check(context.Background(), "kafka")
	assert.True(t, result.Allowed)
	assert.Equal(t, CircuitClosed, cb.State("kafka"))
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "kafka")
	cb.RecordFailure("kafka")
	cb.RecordFailure("kafka")

	result := cb.Check(ctx, "kafka")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
	assert.Equal(t, CircuitOpen, cb.State("kafka"))
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "kafka")
	cb.RecordFailure("kafka")
	cb.RecordSuccess("kafka")
	cb.RecordFailure("kafka")

	result := cb.Check(ctx, "kafka")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := newClock()
	cb := NewCircuitBreaker(1, 5*time.Second)
	cb.now = clock.now
	ctx := context.Background()

	cb.RecordFailure("archive")
	require.False(t, cb.Check(ctx, "archive").Allowed)

	clock.advance(6 * time.Second)
	require.True(t, cb.Check(ctx, "archive").Allowed, "first probe after reset")
	assert.Equal(t, CircuitHalfOpen, cb.State("archive"))
	assert.False(t, cb.Check(ctx, "archive").Allowed, "only one probe in flight")

	t.Run("failed probe reopens", func(t *testing.T) {
		cb.RecordFailure("archive")
		assert.Equal(t, CircuitOpen, cb.State("archive"))
	})

	t.Run("successful probe closes", func(t *testing.T) {
		clock.advance(6 * time.Second)
		require.True(t, cb.Check(ctx, "archive").Allowed)
		cb.RecordSuccess("archive")
		assert.Equal(t, CircuitClosed, cb.State("archive"))
		assert.True(t, cb.Check(ctx, "archive").Allowed)
	})
}

func TestIdempotencyGuard_AllowsFirst(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	result := ig.Check(context.Background(), "undo-123")
	assert.True(t, result.Allowed)
}

func TestIdempotencyGuard_BlocksDuplicate(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	ig.Check(ctx, "undo-123")
	result := ig.Check(ctx, "undo-123")

	assert.False(t, result.Allowed)
	assert.Equal(t, "idempotency", result.Guard)
}

func TestIdempotencyGuard_EmptyKeyAllowed(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	assert.True(t, ig.Check(ctx, "").Allowed)
	assert.True(t, ig.Check(ctx, "").Allowed)
}

func TestIdempotencyGuard_RemoveAllowsRetry(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	ig.Check(ctx, "undo-456")
	ig.Remove("undo-456")

	result := ig.Check(ctx, "undo-456")
	require.True(t, result.Allowed)
}

func TestIdempotencyGuard_Expiry(t *testing.T) {
	clock := newClock()
	ig := NewIdempotencyGuard(time.Minute)
	ig.now = clock.now
	ctx := context.Background()

	ig.Check(ctx, "undo-789")
	clock.advance(2 * time.Minute)
	assert.True(t, ig.Check(ctx, "undo-789").Allowed)

	clock.advance(2 * time.Minute)
	ig.Sweep()
	ig.mu.Lock()
	n := len(ig.seen)
	ig.mu.Unlock()
	assert.Zero(t, n)
}
