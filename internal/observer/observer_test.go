package observer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ledger/ledgertest"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	renter = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func next(t *testing.T, ch <-chan Observation) Observation {
	t.Helper()
	select {
	case obs, ok := <-ch:
		require.True(t, ok, "channel closed early")
		return obs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for observation")
	}
	return Observation{}
}

// waitFor reads observations until cond holds.
func waitFor(t *testing.T, ch <-chan Observation, cond func(Observation) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case obs, ok := <-ch:
			require.True(t, ok, "channel closed early")
			if cond(obs) {
				return
			}
		case <-deadline:
			t.Fatal("condition not observed in time")
		}
	}
}

func TestWatchReportsFreshState(t *testing.T) {
	fake := ledgertest.New()
	id := fake.AddAgent(owner, "bafy", big.NewInt(1_000), big.NewInt(0), true)
	w := NewWatcher(fake, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := w.Watch(ctx, id)

	obs := next(t, ch)
	require.NoError(t, obs.Err)
	assert.Equal(t, models.StatusFree, obs.Status)
	assert.False(t, obs.Rented)

	now := time.Now()
	fake.SetRental(id, models.Rental{Renter: renter, StartAt: now, EndAt: now.Add(time.Hour), PricePaid: big.NewInt(1)})

	waitFor(t, ch, func(obs Observation) bool {
		return obs.Err == nil && obs.Status == models.StatusRented && obs.TimeRemaining > 59*time.Minute
	})
}

func TestWatchUnavailableAgent(t *testing.T) {
	fake := ledgertest.New()
	id := fake.AddAgent(owner, "bafy", big.NewInt(1), big.NewInt(0), false)
	w := NewWatcher(fake, time.Hour, zerolog.Nop())

	obs := w.Poll(context.Background(), id)
	require.NoError(t, obs.Err)
	assert.Equal(t, models.StatusUnavailable, obs.Status)
}

func TestPollStatusFollowsRentalWindow(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("window closed while registry still reports rented", func(t *testing.T) {
		fake := ledgertest.New()
		fake.Now = func() time.Time { return at.Add(-2 * time.Hour) }
		id := fake.AddAgent(owner, "bafy", big.NewInt(1), big.NewInt(0), true)
		fake.SetRental(id, models.Rental{Renter: renter, StartAt: at.Add(-3 * time.Hour), EndAt: at.Add(-time.Hour), PricePaid: big.NewInt(1)})

		w := NewWatcher(fake, time.Hour, zerolog.Nop())
		w.now = func() time.Time { return at }

		obs := w.Poll(context.Background(), id)
		require.NoError(t, obs.Err)
		assert.True(t, obs.Rented)
		assert.Equal(t, models.StatusFree, obs.Status)
		assert.Equal(t, models.StatusAt(obs.Agent, obs.Rental, obs.At), obs.Status)
		assert.Zero(t, obs.TimeRemaining)
	})

	t.Run("window open while registry reports free", func(t *testing.T) {
		fake := ledgertest.New()
		fake.Now = func() time.Time { return at.Add(2 * time.Hour) }
		id := fake.AddAgent(owner, "bafy", big.NewInt(1), big.NewInt(0), false)
		fake.SetRental(id, models.Rental{Renter: renter, StartAt: at.Add(-time.Hour), EndAt: at.Add(time.Hour), PricePaid: big.NewInt(1)})

		w := NewWatcher(fake, time.Hour, zerolog.Nop())
		w.now = func() time.Time { return at }

		obs := w.Poll(context.Background(), id)
		require.NoError(t, obs.Err)
		assert.False(t, obs.Rented)
		assert.Equal(t, models.StatusRented, obs.Status)
		assert.Equal(t, time.Hour, obs.TimeRemaining)
	})
}

func TestWatchErrorsRetryOnNextTick(t *testing.T) {
	fake := ledgertest.New()
	id := fake.AddAgent(owner, "bafy", big.NewInt(1), big.NewInt(0), true)
	fake.SetReadErr(errors.New("rpc unavailable"))
	w := NewWatcher(fake, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := w.Watch(ctx, id)

	obs := next(t, ch)
	require.Error(t, obs.Err)
	assert.Nil(t, obs.Agent)
	readsAfterFailure := fake.Reads()

	// No immediate retry: reads stay put until the next tick.
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, readsAfterFailure, fake.Reads())

	fake.SetReadErr(nil)
	waitFor(t, ch, func(obs Observation) bool { return obs.Err == nil })
}

func TestWatchStopsOnCancel(t *testing.T) {
	fake := ledgertest.New()
	id := fake.AddAgent(owner, "bafy", big.NewInt(1), big.NewInt(0), true)
	w := NewWatcher(fake, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ch := w.Watch(ctx, id)
	next(t, ch)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestIndependentWatches(t *testing.T) {
	fake := ledgertest.New()
	a := fake.AddAgent(owner, "bafya", big.NewInt(1), big.NewInt(0), true)
	b := fake.AddAgent(owner, "bafyb", big.NewInt(1), big.NewInt(0), false)
	w := NewWatcher(fake, 10*time.Millisecond, zerolog.Nop())

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()

	chA := w.Watch(ctxA, a)
	chB := w.Watch(ctxB, b)
	assert.Equal(t, a, next(t, chA).AgentID)
	cancelA()
	assert.Equal(t, models.StatusUnavailable, next(t, chB).Status)
	assert.Equal(t, models.StatusUnavailable, next(t, chB).Status)
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []*models.DirectorySnapshot
	ttl   time.Duration
}

func (s *recordingSink) SaveSnapshot(ctx context.Context, snap *models.DirectorySnapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	s.ttl = ttl
	return nil
}

func TestDirectoryRefreshReplacesSnapshot(t *testing.T) {
	fake := ledgertest.New()
	a := fake.AddAgent(owner, "bafya", big.NewInt(1), big.NewInt(0), true)
	now := time.Now()
	fake.SetRental(a, models.Rental{Renter: renter, StartAt: now, EndAt: now.Add(time.Hour), PricePaid: big.NewInt(1)})

	sink := &recordingSink{}
	d := NewDirectory(fake, 3*time.Second, zerolog.Nop(), WithSink(sink), WithParallelism(2))
	assert.Nil(t, d.Snapshot())

	require.NoError(t, d.Refresh(context.Background()))
	first := d.Snapshot()
	require.Len(t, first.Listings, 1)
	assert.Equal(t, renter, first.Listings[0].Rental.Renter)

	fake.AddAgent(owner, "bafyb", big.NewInt(2), big.NewInt(0), true)
	require.NoError(t, d.Refresh(context.Background()))
	second := d.Snapshot()
	require.Len(t, second.Listings, 2)
	assert.Len(t, first.Listings, 1, "earlier snapshot must not be mutated")

	l, ok := d.Get(2)
	require.True(t, ok)
	assert.Equal(t, "bafyb", l.Agent.ContentRef)
	_, ok = d.Get(99)
	assert.False(t, ok)

	assert.Len(t, sink.snaps, 2)
	assert.Equal(t, 3*time.Second, sink.ttl)
}

func TestDirectoryFailedRefreshKeepsPrevious(t *testing.T) {
	fake := ledgertest.New()
	fake.AddAgent(owner, "bafya", big.NewInt(1), big.NewInt(0), true)
	d := NewDirectory(fake, time.Second, zerolog.Nop())
	require.NoError(t, d.Refresh(context.Background()))
	before := d.Snapshot()

	fake.SetReadErr(errors.New("rpc unavailable"))
	require.Error(t, d.Refresh(context.Background()))
	assert.Same(t, before, d.Snapshot())
}

func TestDirectoryRunAndTrigger(t *testing.T) {
	fake := ledgertest.New()
	d := NewDirectory(fake, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Snapshot() != nil }, 2*time.Second, time.Millisecond)
	assert.Empty(t, d.Snapshot().Listings)

	fake.AddAgent(owner, "bafya", big.NewInt(1), big.NewInt(0), true)
	d.Trigger()
	require.Eventually(t, func() bool { return len(d.Snapshot().Listings) == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDirectorySeedOnlyWhenEmpty(t *testing.T) {
	d := NewDirectory(ledgertest.New(), time.Second, zerolog.Nop())
	seed := &models.DirectorySnapshot{TakenAt: time.Now()}
	d.Seed(seed)
	assert.Same(t, seed, d.Snapshot())
	d.Seed(&models.DirectorySnapshot{})
	assert.Same(t, seed, d.Snapshot())
}
