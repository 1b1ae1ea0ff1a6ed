package export

import (
	"context"
	"sync/atomic"
	"time"

	logpkg "github.com/rzbill/provex/pkg/log"
)

// Runner invokes the cycle on a fixed interval, one invocation at a time.
// Unschedule flips a flag observed between cycles: an in-flight cycle always
// finishes its current batch; no new cycles start afterwards.
type Runner struct {
	cycle     *Cycle
	interval  time.Duration
	logger    logpkg.Logger
	scheduled atomic.Bool
}

// NewRunner builds a Runner in the scheduled state.
func NewRunner(cycle *Cycle, interval time.Duration, logger logpkg.Logger) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("export"))
	}
	r := &Runner{cycle: cycle, interval: interval, logger: logger}
	r.scheduled.Store(true)
	return r
}

// Schedule allows cycles to run again after an Unschedule.
func (r *Runner) Schedule() { r.scheduled.Store(true) }

// Unschedule stops new cycles from starting. Safe to call from any goroutine
// while a cycle runs.
func (r *Runner) Unschedule() { r.scheduled.Store(false) }

// Scheduled reports whether new cycles may start.
func (r *Runner) Scheduled() bool { return r.scheduled.Load() }

// Run blocks, driving cycles on the interval until ctx is cancelled. A cycle
// failure is logged as a processing failure and the next tick retries the
// same batch; it never stops the loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !r.scheduled.Load() {
				continue
			}
			if err := r.cycle.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("export cycle failed; will retry from the same position", logpkg.Err(err))
			}
		}
	}
}
