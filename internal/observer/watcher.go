// Package observer keeps local views of the registry fresh by polling it.
// Every poll replaces what the previous one reported; nothing is merged.
package observer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/ledger"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/metrics"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// DefaultInterval is the rental/availability poll period.
const DefaultInterval = 3 * time.Second

// Observation is the complete state of one agent as of At. When Err is set
// the other fields are zero and the next tick will try again.
type Observation struct {
	AgentID       uint64
	At            time.Time
	Agent         *models.Agent
	Rental        *models.Rental
	Rented        bool
	Status        models.Status
	TimeRemaining time.Duration
	Err           error
}

// Watcher polls single agents.
type Watcher struct {
	ledger   ledger.Reader
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewWatcher creates a watcher polling every interval (DefaultInterval if
// zero or negative).
func NewWatcher(r ledger.Reader, interval time.Duration, logger zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		ledger:   r,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "watcher").Logger(),
	}
}

// Watch starts an independent poll loop for id. The first poll happens
// immediately. The channel holds at most the latest unread observation and
// is closed once ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, id uint64) <-chan Observation {
	out := make(chan Observation, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			obs := w.poll(ctx, id)
			if ctx.Err() != nil {
				return
			}
			if obs.Err != nil {
				metrics.PollErrors.WithLabelValues("watcher").Inc()
				w.logger.Warn().Err(obs.Err).Uint64("agent_id", id).Msg("poll failed, retrying next tick")
			}
			replace(out, obs)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

// replace sends obs, discarding an unread older observation. Only the
// owning loop sends, so the second send cannot block.
func replace(out chan Observation, obs Observation) {
	select {
	case out <- obs:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- obs
}

// Poll reads the current state of id once.
func (w *Watcher) Poll(ctx context.Context, id uint64) Observation {
	return w.poll(ctx, id)
}

func (w *Watcher) poll(ctx context.Context, id uint64) Observation {
	obs := Observation{AgentID: id, At: w.now()}

	agent, err := w.ledger.Agent(ctx, id)
	if err != nil {
		obs.Err = err
		return obs
	}
	rented, err := w.ledger.IsRented(ctx, id)
	if err != nil {
		obs.Err = err
		return obs
	}
	rental, err := w.ledger.Rental(ctx, id)
	if err != nil {
		obs.Err = err
		return obs
	}
	var remaining time.Duration
	if rented {
		if remaining, err = w.ledger.TimeRemaining(ctx, id); err != nil {
			obs.Err = err
			return obs
		}
	}

	obs.Agent = agent
	obs.Rental = rental
	obs.Rented = rented
	// Status follows the rental window at the observation time; the
	// registry's isRented answer is kept on Rented for comparison.
	obs.Status = models.StatusAt(agent, rental, obs.At)
	switch {
	case obs.Status != models.StatusRented:
		remaining = 0
	case remaining == 0:
		remaining = rental.TimeRemaining(obs.At).Truncate(time.Second)
	}
	obs.TimeRemaining = remaining
	return obs
}
