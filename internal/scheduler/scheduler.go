// Package scheduler drives the engine's check cycle on a fixed wall-clock
// tick. The cycle runs synchronously inside the loop, so cycles never
// overlap: a cycle that overruns the tick period simply delays the next
// one. The ticker is the sole source of wakeups; a slow cycle exerts no
// backpressure on the tick.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler invokes a cycle function on every tick.
type Scheduler struct {
	tick   time.Duration
	cycle  func(ctx context.Context)
	logger *slog.Logger
}

// New creates a Scheduler. tick must be positive.
func New(tick time.Duration, cycle func(ctx context.Context), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{tick: tick, cycle: cycle, logger: logger}
}

// Run executes the cycle once immediately, then on every tick. Blocks
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}
