// Package guard holds the in-process request guards: a per-client rate
// limiter, an idempotency guard for undo replays, and a circuit breaker for
// the outbound event sinks.
package guard

import "time"

// Result is the outcome of one guard check.
type Result struct {
	Allowed    bool
	Reason     string
	Guard      string
	RetryAfter time.Duration
}

func allow() Result { return Result{Allowed: true} }
