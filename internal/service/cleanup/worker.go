package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultInterval = 10 * time.Minute

// Sweeper drops expired entries and reports how many were removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Worker periodically prunes the in-memory token store so expired refresh
// tokens don't accumulate between reads.
type Worker struct {
	sweeper  Sweeper
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewWorker(sweeper Sweeper, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Worker{sweeper: sweeper, interval: interval, clock: clock, logger: logger.With("component", "cleanup")}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("background worker started", "interval", w.interval)
	w.runCleanup()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("background worker stopped")
			return nil
		case <-ticker.Chan():
			w.runCleanup()
		}
	}
}

func (w *Worker) runCleanup() {
	if removed := w.sweeper.Sweep(w.clock.Now()); removed > 0 {
		w.logger.Info("removed expired entries", "count", removed)
	}
}
