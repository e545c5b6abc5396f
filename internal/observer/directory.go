package observer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ledger"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// SnapshotSink receives every successful directory refresh.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snap *models.DirectorySnapshot, ttl time.Duration) error
}

// Directory is the shared list of all agents with their rental slots.
type Directory struct {
	ledger   ledger.Reader
	interval time.Duration
	parallel int
	sink     SnapshotSink
	now      func() time.Time
	logger   zerolog.Logger

	trigger chan struct{}

	mu   sync.RWMutex
	snap *models.DirectorySnapshot
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithSink mirrors each snapshot into sink.
func WithSink(sink SnapshotSink) DirectoryOption {
	return func(d *Directory) { d.sink = sink }
}

// WithParallelism bounds concurrent rental reads per refresh.
func WithParallelism(n int) DirectoryOption {
	return func(d *Directory) {
		if n > 0 {
			d.parallel = n
		}
	}
}

// NewDirectory creates a directory refreshed every interval.
func NewDirectory(r ledger.Reader, interval time.Duration, logger zerolog.Logger, opts ...DirectoryOption) *Directory {
	if interval <= 0 {
		interval = DefaultInterval
	}
	d := &Directory{
		ledger:   r,
		interval: interval,
		parallel: 8,
		now:      time.Now,
		logger:   logger.With().Str("component", "directory").Logger(),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run refreshes immediately, then on every tick or Trigger, until ctx is
// cancelled. Failed refreshes keep the previous snapshot.
func (d *Directory) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
			metrics.PollErrors.WithLabelValues("directory").Inc()
			d.logger.Warn().Err(err).Msg("directory refresh failed, retrying next tick")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.trigger:
		}
	}
}

// Trigger asks a running loop to refresh now. It never blocks.
func (d *Directory) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Refresh rebuilds the snapshot from the ledger and swaps it in whole.
func (d *Directory) Refresh(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.DirectoryRefreshDuration.Observe(time.Since(start).Seconds()) }()

	agents, err := d.ledger.Agents(ctx)
	if err != nil {
		return err
	}

	rentals := make([]*models.Rental, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallel)
	for i := range agents {
		i := i
		g.Go(func() error {
			r, err := d.ledger.Rental(gctx, agents[i].ID)
			if err != nil {
				return err
			}
			rentals[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snap := &models.DirectorySnapshot{
		TakenAt:  d.now().UTC(),
		Listings: make([]models.Listing, len(agents)),
	}
	for i := range agents {
		snap.Listings[i] = models.Listing{Agent: agents[i], Rental: rentals[i]}
	}

	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()
	metrics.DirectoryAgents.Set(float64(len(agents)))

	if d.sink != nil {
		if err := d.sink.SaveSnapshot(ctx, snap, d.interval); err != nil {
			d.logger.Warn().Err(err).Msg("snapshot mirror failed")
		}
	}
	d.logger.Debug().Int("agents", len(agents)).Dur("took", time.Since(start)).Msg("directory refreshed")
	return nil
}

// Snapshot returns the latest snapshot, or nil before the first refresh.
// Callers must not modify it.
func (d *Directory) Snapshot() *models.DirectorySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Seed installs snap as the current snapshot if none exists yet.
func (d *Directory) Seed(snap *models.DirectorySnapshot) {
	if snap == nil {
		return
	}
	d.mu.Lock()
	if d.snap == nil {
		d.snap = snap
	}
	d.mu.Unlock()
}

// Get returns the listing for id from the latest snapshot.
func (d *Directory) Get(id uint64) (models.Listing, bool) {
	snap := d.Snapshot()
	if snap == nil {
		return models.Listing{}, false
	}
	for _, l := range snap.Listings {
		if l.Agent.ID == id {
			return l, true
		}
	}
	return models.Listing{}, false
}
