package ledger

import (
	"github.com/hexhub/platform/internal/domain"
)

// PurchaseResult is the outcome of a lock-held purchase attempt.
type PurchaseResult int

const (
	Purchased PurchaseResult = iota
	SoldOut
	Insufficient
)

func (r PurchaseResult) String() string {
	switch r {
	case Purchased:
		return "purchased"
	case SoldOut:
		return "sold_out"
	case Insufficient:
		return "insufficient"
	default:
		return "unknown"
	}
}

// PurchaseEntitlement checks the pool and the funds, then allocates one unit
// of kind, debits cost and records the piece as held, all under one lock.
func (l *Ledger) PurchaseEntitlement(kind domain.EntitlementKind, cost domain.Resources) (domain.Resources, PurchaseResult) {
	domain.MustEntitlement(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining[kind] <= 0 {
		return l.resources, SoldOut
	}
	if !l.resources.Covers(cost) {
		return l.resources, Insufficient
	}
	l.remaining[kind]--
	l.held[kind]++
	l.resources = l.resources.Sub(cost)
	return l.resources, Purchased
}

// RefundEntitlement reverses PurchaseEntitlement. It returns false when the
// player holds no piece of kind or the pool is already full.
func (l *Ledger) RefundEntitlement(kind domain.EntitlementKind, cost domain.Resources) (domain.Resources, bool) {
	domain.MustEntitlement(kind)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[kind] == 0 || l.remaining[kind] >= l.max[kind] {
		return l.resources, false
	}
	l.held[kind]--
	l.remaining[kind]++
	l.resources = l.resources.Add(cost)
	return l.resources, true
}

// Exchange applies da to a and db to b atomically. Neither ledger may end
// with a negative counter; if either would, nothing changes and false is
// returned. Locks are taken in identity-key order so concurrent exchanges
// between the same pair cannot deadlock.
func Exchange(a, b *Ledger, da, db domain.Resources) bool {
	if a == b {
		_, ok := a.TryApplyIfSufficient(da.Add(db))
		return ok
	}
	first, second := a, b
	if b.id.Key() < a.id.Key() {
		first, second = b, a
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	nextA := a.resources.Add(da)
	nextB := b.resources.Add(db)
	if !nextA.NonNegative() || !nextB.NonNegative() {
		return false
	}
	a.resources = nextA
	b.resources = nextB
	return true
}

// Snapshot is a deep copy of a ledger taken under its read lock.
type Snapshot struct {
	Game          string              `json:"game"`
	Player        string              `json:"player"`
	Resources     domain.Resources    `json:"resources"`
	Remaining     domain.Entitlements `json:"remaining"`
	Held          domain.Entitlements `json:"held"`
	DevCards      []domain.DevCard    `json:"dev_cards"`
	PendingEvents int                 `json:"pending_events"`
}

// Snapshot copies the ledger's counters and holdings.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cards := make([]domain.DevCard, len(l.devCards))
	copy(cards, l.devCards)
	return Snapshot{
		Game:          l.id.Game,
		Player:        l.id.Player,
		Resources:     l.resources,
		Remaining:     l.remaining,
		Held:          l.held,
		DevCards:      cards,
		PendingEvents: len(l.pending),
	}
}
