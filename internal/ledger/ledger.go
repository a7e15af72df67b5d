// Package ledger holds the per-player state of one game: resource counters,
// entitlement pools, development cards, and the private queue of events
// waiting to be delivered to that player.
//
// Every exported method is atomic with respect to concurrent callers on the
// same ledger. Mutations take the write lock; snapshots take the read lock.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/hexhub/platform/internal/domain"
)

var (
	// ErrWaitInProgress is returned when a second WaitForEvents call overlaps
	// one that is still suspended on the same ledger.
	ErrWaitInProgress = errors.New("ledger: another wait is already in progress")
	// ErrClosed is returned by WaitForEvents once the ledger is closed and its
	// queue has been drained.
	ErrClosed = errors.New("ledger: closed")
)

// Ledger is the mutable state of one player.
type Ledger struct {
	mu sync.RWMutex

	id        domain.PlayerIdentity
	resources domain.Resources
	max       domain.Entitlements
	remaining domain.Entitlements
	held      domain.Entitlements
	devCards  []domain.DevCard

	pending []*domain.EventRecord
	waiter  *waiter
	closed  bool
}

// New creates a ledger whose entitlement pools start full at max.
func New(id domain.PlayerIdentity, max domain.Entitlements) *Ledger {
	return &Ledger{
		id:        id,
		max:       max,
		remaining: max,
	}
}

// Identity returns the player identity the ledger was created for.
func (l *Ledger) Identity() domain.PlayerIdentity { return l.id }

// Name returns the player's display name.
func (l *Ledger) Name() string { return l.id.Player }

// --- Resources ---

// AddResources adds delta to the counters and returns the new values.
// Negative end states are not rejected here; see TryApplyIfSufficient.
func (l *Ledger) AddResources(delta domain.Resources) domain.Resources {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resources = l.resources.Add(delta)
	return l.resources
}

// TryApplyIfSufficient applies delta only if no counter would end below zero.
// The check and the mutation happen under one lock acquisition.
func (l *Ledger) TryApplyIfSufficient(delta domain.Resources) (domain.Resources, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.resources.Add(delta)
	if !next.NonNegative() {
		return l.resources, false
	}
	l.resources = next
	return next, true
}

// Resources returns a copy of the current counters.
func (l *Ledger) Resources() domain.Resources {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resources
}

// TakeAllOfResource zeroes the counter for kind and returns what was removed.
func (l *Ledger) TakeAllOfResource(kind domain.ResourceKind) int {
	domain.MustResource(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.resources[kind]
	l.resources[kind] = 0
	return n
}

// --- Entitlements ---

// AllocateEntitlement takes one unit from the purchasable pool for kind.
// It returns false when the pool is sold out.
func (l *Ledger) AllocateEntitlement(kind domain.EntitlementKind) bool {
	domain.MustEntitlement(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining[kind] <= 0 {
		return false
	}
	l.remaining[kind]--
	return true
}

// FreeEntitlement returns one unit to the pool for kind. It returns false if
// the pool is already at its configured maximum.
func (l *Ledger) FreeEntitlement(kind domain.EntitlementKind) bool {
	domain.MustEntitlement(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining[kind] >= l.max[kind] {
		return false
	}
	l.remaining[kind]++
	return true
}

// AddEntitlementHeld records one more piece of kind on the board.
func (l *Ledger) AddEntitlementHeld(kind domain.EntitlementKind) {
	domain.MustEntitlement(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[kind]++
}

// RemoveEntitlementHeld takes one piece of kind off the board. It returns
// false when the player holds none.
func (l *Ledger) RemoveEntitlementHeld(kind domain.EntitlementKind) bool {
	domain.MustEntitlement(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[kind] == 0 {
		return false
	}
	l.held[kind]--
	return true
}

// Remaining returns how many of kind can still be purchased.
func (l *Ledger) Remaining(kind domain.EntitlementKind) int {
	domain.MustEntitlement(kind)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.remaining[kind]
}

// Held returns how many of kind the player has on the board.
func (l *Ledger) Held(kind domain.EntitlementKind) int {
	domain.MustEntitlement(kind)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.held[kind]
}

// --- Development cards ---

// DrawAndHoldDevCard adds an unplayed card of kind to the player's hand.
func (l *Ledger) DrawAndHoldDevCard(kind domain.DevCardKind) {
	domain.MustDevCard(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.devCards = append(l.devCards, domain.DevCard{Kind: kind})
}

// PlayDevCard marks the first unplayed card of kind as played. It returns
// false when the player has no unplayed card of that kind.
func (l *Ledger) PlayDevCard(kind domain.DevCardKind) bool {
	domain.MustDevCard(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.devCards {
		if l.devCards[i].Kind == kind && !l.devCards[i].Played {
			l.devCards[i].Played = true
			return true
		}
	}
	return false
}

// DiscardDevCard removes one unplayed card of kind from the hand, used when
// a dev card purchase is reversed.
func (l *Ledger) DiscardDevCard(kind domain.DevCardKind) bool {
	domain.MustDevCard(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.devCards) - 1; i >= 0; i-- {
		if l.devCards[i].Kind == kind && !l.devCards[i].Played {
			l.devCards = append(l.devCards[:i], l.devCards[i+1:]...)
			return true
		}
	}
	return false
}

// --- Event queue ---

// AppendEvent queues rec for delivery. It does not wake a waiter.
func (l *Ledger) AppendEvent(rec *domain.EventRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.pending = append(l.pending, rec)
}

// Pending returns the number of queued events.
func (l *Ledger) Pending() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// WaitForEvents drains the pending queue. If it is empty the call suspends
// until ReleaseWaiter or Close, or until ctx ends. Only one wait may be
// outstanding per ledger; an overlapping call gets ErrWaitInProgress.
//
// On ctx expiry the queue is left untouched and ctx.Err() is returned.
func (l *Ledger) WaitForEvents(ctx context.Context) ([]*domain.EventRecord, error) {
	l.mu.Lock()
	if l.waiter != nil {
		l.mu.Unlock()
		return nil, ErrWaitInProgress
	}
	for {
		if len(l.pending) > 0 {
			out := l.drainLocked()
			l.mu.Unlock()
			return out, nil
		}
		if l.closed {
			l.mu.Unlock()
			return nil, ErrClosed
		}

		w := newWaiter()
		l.waiter = w
		l.mu.Unlock()

		select {
		case <-w.done:
		case <-ctx.Done():
			l.mu.Lock()
			if l.waiter == w {
				l.waiter = nil
			}
			l.mu.Unlock()
			return nil, ctx.Err()
		}

		l.mu.Lock()
		if l.waiter == w {
			l.waiter = nil
		}
		// A release with nothing queued re-arms rather than returning empty.
	}
}

// drainLocked hands the queue to the caller. l.mu must be held.
func (l *Ledger) drainLocked() []*domain.EventRecord {
	out := l.pending
	l.pending = nil
	return out
}

// ReleaseWaiter signals the installed waiter, if any. It is a no-op when no
// wait is outstanding or the waiter already fired.
func (l *Ledger) ReleaseWaiter() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waiter != nil {
		l.waiter.signal()
	}
}

// Waiting reports whether a WaitForEvents call is suspended on an armed waiter.
func (l *Ledger) Waiting() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.waiter != nil && !l.waiter.signaled
}

// Close stops the ledger from accepting events and wakes any waiter. Events
// already queued can still be drained.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.waiter != nil {
		l.waiter.signal()
	}
}

// Closed reports whether Close has been called.
func (l *Ledger) Closed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}
