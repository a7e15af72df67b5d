package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/hexhub/platform/internal/domain"
	"github.com/hexhub/platform/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestGame(t *testing.T, players ...string) *Game {
	t.Helper()
	g := New("Table1", domain.DefaultGameInfo(), WithRand(rand.New(rand.NewPCG(1, 2))))
	for _, p := range players {
		_, created, err := g.RegisterPlayer(p)
		require.NoError(t, err)
		require.True(t, created)
	}
	return g
}

func waitAsync(l *ledger.Ledger) <-chan []*domain.EventRecord {
	out := make(chan []*domain.EventRecord, 1)
	go func() {
		recs, _ := l.WaitForEvents(context.Background())
		out <- recs
	}()
	return out
}

// --- Registration ---

func TestRegisterPlayer_CaseInsensitiveAndIdempotent(t *testing.T) {
	g := newTestGame(t, "Alice")

	l, created, err := g.RegisterPlayer("ALICE")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Alice", l.Name())

	got, ok := g.GetPlayer("alice")
	require.True(t, ok)
	assert.Same(t, l, got)
	assert.Len(t, g.Players(), 1)
}

func TestRegisterPlayer_RejectedAfterStart(t *testing.T) {
	g := newTestGame(t, "alice")
	require.NoError(t, g.Start())

	_, _, err := g.RegisterPlayer("bob")
	assert.ErrorIs(t, err, ErrStarted)

	// Existing players are still found.
	_, created, err := g.RegisterPlayer("alice")
	require.NoError(t, err)
	assert.False(t, created)

	assert.ErrorIs(t, g.Start(), ErrStarted)
}

func TestRegisterPlayer_ConcurrentSameName(t *testing.T) {
	g := newTestGame(t)
	const n = 16
	ledgers := make([]*ledger.Ledger, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, _, err := g.RegisterPlayer("Carol")
			assert.NoError(t, err)
			ledgers[i] = l
		}(i)
	}
	wg.Wait()
	for _, l := range ledgers[1:] {
		assert.Same(t, ledgers[0], l)
	}
	assert.Len(t, g.Players(), 1)
}

func TestRemovePlayer_ClosesLedger(t *testing.T) {
	g := newTestGame(t, "alice", "bob")
	l, ok := g.RemovePlayer("BOB")
	require.True(t, ok)
	assert.True(t, l.Closed())

	_, ok = g.GetPlayer("bob")
	assert.False(t, ok)
	require.Len(t, g.Players(), 1)
	assert.Equal(t, "alice", g.Players()[0].Name())

	_, ok = g.RemovePlayer("bob")
	assert.False(t, ok)
}

// --- Events ---

func TestPostEvent_AppendsToEveryLedgerWithoutWaking(t *testing.T) {
	g := newTestGame(t, "alice", "bob")
	alice, _ := g.GetPlayer("alice")
	bob, _ := g.GetPlayer("bob")

	ch := waitAsync(alice)
	require.Eventually(t, alice.Waiting, time.Second, time.Millisecond)
	rec := g.PostEvent(domain.NewEvent(domain.EventGeneric, "alice").WithMessage("hi"))
	assert.Equal(t, uint64(1), rec.Seq())
	assert.Equal(t, "Table1", rec.Game())

	select {
	case <-ch:
		t.Fatal("post alone must not wake a waiter")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 1, bob.Pending())
	g.ReleaseAllWaiters()

	select {
	case recs := <-ch:
		require.Len(t, recs, 1)
		assert.Same(t, rec, recs[0])
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released")
	}

	recs, err := bob.WaitForEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Same(t, rec, recs[0], "records are shared by reference")
}

func TestPostEvent_ConcurrentPostsAreOrderedPerLedger(t *testing.T) {
	g := newTestGame(t, "alice", "bob", "carol")
	const posters, per = 8, 50

	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				g.PostEvent(domain.NewEvent(domain.EventGeneric, "alice"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(posters*per), g.LastSeq())
	for _, l := range g.Players() {
		recs, err := l.WaitForEvents(context.Background())
		require.NoError(t, err)
		require.Len(t, recs, posters*per)
		for i, r := range recs {
			assert.Equal(t, uint64(i+1), r.Seq(), "ledger %s", l.Name())
		}
	}
}

func TestTakeAllFromEveryPlayer(t *testing.T) {
	g := newTestGame(t, "alice", "bob", "carol")
	alice, _ := g.GetPlayer("alice")
	bob, _ := g.GetPlayer("bob")
	carol, _ := g.GetPlayer("carol")
	alice.AddResources(domain.Of(domain.Ore, 2))
	bob.AddResources(domain.Of(domain.Ore, 3))

	total, recs := g.TakeAllFromEveryPlayer(domain.Ore, "CAROL")
	assert.Equal(t, 5, total)
	require.Len(t, recs, 2)
	assert.Equal(t, 0, alice.Resources()[domain.Ore])
	assert.Equal(t, 0, bob.Resources()[domain.Ore])
	assert.Equal(t, 0, carol.Resources()[domain.Ore], "beneficiary is credited by the caller")

	for _, r := range recs {
		assert.Equal(t, domain.EventTake, r.Kind())
		assert.Equal(t, "CAROL", r.Counterparty())
		k, ok := r.Resource()
		require.True(t, ok)
		assert.Equal(t, domain.Ore, k)
	}
	assert.Equal(t, -2, recs[0].Delta()[domain.Ore])
	assert.Equal(t, -3, recs[1].Delta()[domain.Ore])
}

// --- Dev cards ---

func TestRoadBuildingScenario(t *testing.T) {
	g := newTestGame(t, "alice")
	alice, _ := g.GetPlayer("alice")

	for i := 0; i < 2; i++ {
		if alice.AllocateEntitlement(domain.Road) {
			alice.AddEntitlementHeld(domain.Road)
		}
	}
	assert.Equal(t, 13, alice.Remaining(domain.Road))
	assert.Equal(t, 2, alice.Held(domain.Road))
}

func TestDevCardPool_DrawsWithoutReplacement(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var counts domain.DevCardCounts
		for i := range counts {
			counts[i] = rapid.IntRange(0, 6).Draw(t, "count")
		}
		seed := rapid.Uint64().Draw(t, "seed")
		pool := NewDevCardPool(counts, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))

		var drawn domain.DevCardCounts
		for {
			k, ok := pool.Draw()
			if !ok {
				break
			}
			drawn[k]++
		}
		if drawn != counts {
			t.Fatalf("drew %v, pool held %v", drawn, counts)
		}
		if pool.Remaining() != 0 {
			t.Fatalf("remaining %d after exhaustion", pool.Remaining())
		}
	})
}

func TestDevCardPool_ConcurrentDrawsAreDistinct(t *testing.T) {
	g := newTestGame(t)
	total := g.DevCardsRemaining()

	var mu sync.Mutex
	var drawn domain.DevCardCounts
	n := 0
	var wg sync.WaitGroup
	for i := 0; i < total+10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if k, ok := g.DrawDevCard(); ok {
				mu.Lock()
				drawn[k]++
				n++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, total, n)
	assert.Equal(t, g.Info().DevCards, drawn)

	g.ReturnDevCard(domain.Knight)
	k, ok := g.DrawDevCard()
	require.True(t, ok)
	assert.Equal(t, domain.Knight, k)
}

// --- Registry ---

func TestRegistry_FindOrCreate(t *testing.T) {
	r := NewRegistry()
	g1, created := r.FindOrCreate("Table1", domain.DefaultGameInfo())
	require.True(t, created)
	g2, created := r.FindOrCreate("table1", domain.DefaultGameInfo())
	assert.False(t, created)
	assert.Same(t, g1, g2)
	assert.Equal(t, "Table1", g2.Key())

	r.FindOrCreate("alpha", domain.DefaultGameInfo())
	assert.Equal(t, []string{"Table1", "alpha"}, r.Keys())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ConcurrentFindOrCreate(t *testing.T) {
	r := NewRegistry()
	const n = 32
	games := make([]*Game, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			games[i], _ = r.FindOrCreate("shared", domain.DefaultGameInfo())
		}(i)
	}
	wg.Wait()
	for _, g := range games[1:] {
		assert.Same(t, games[0], g)
	}
}

func TestRegistry_DeleteClosesLedgersAndWakesWaiters(t *testing.T) {
	r := NewRegistry()
	g, _ := r.FindOrCreate("t", domain.DefaultGameInfo())
	l, _, err := g.RegisterPlayer("alice")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := l.WaitForEvents(context.Background())
		errc <- err
	}()
	require.Eventually(t, l.Waiting, time.Second, time.Millisecond)

	var finals []string
	deleted, ok := r.Delete("T", func(g *Game) {
		finals = append(finals, g.Key())
		assert.Equal(t, StateOpen, g.State())
	})
	require.True(t, ok)
	assert.Same(t, g, deleted)
	assert.Equal(t, StateDeleted, g.State())
	assert.Equal(t, []string{"t"}, finals)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ledger.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by delete")
	}

	_, ok = r.Get("t")
	assert.False(t, ok)
	_, _, err = g.RegisterPlayer("bob")
	assert.ErrorIs(t, err, ErrDeleted)
	assert.ErrorIs(t, g.Start(), ErrDeleted)

	_, ok = r.Delete("t", func(*Game) { t.Fatal("final ran for a missing game") })
	assert.False(t, ok)
}

type recordingPublisher struct {
	mu   sync.Mutex
	seqs []uint64
}

func (p *recordingPublisher) Publish(rec *domain.EventRecord) {
	p.mu.Lock()
	p.seqs = append(p.seqs, rec.Seq())
	p.mu.Unlock()
}

func TestPostEvent_PublisherSeesSequenceOrder(t *testing.T) {
	pub := &recordingPublisher{}
	g := New("t", domain.DefaultGameInfo(), WithPublisher(pub))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				g.PostEvent(domain.NewEvent(domain.EventGeneric, ""))
			}
		}()
	}
	wg.Wait()

	require.Len(t, pub.seqs, 200)
	for i, s := range pub.seqs {
		assert.Equal(t, uint64(i+1), s)
	}
}
