package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PassFunc executes one notification pass anchored at now.
type PassFunc func(ctx context.Context, now time.Time) error

// Scheduler drives repeated passes for watch mode. Production invokes
// the binary from cron instead; each tick has identical semantics to a
// standalone run.
type Scheduler struct {
	interval time.Duration
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{interval: interval, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run executes one pass immediately and then on every tick until ctx
// is cancelled. Pass errors are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context, pass PassFunc) error {
	if err := pass(ctx, time.Now().UTC()); err != nil {
		s.logger.Error().Err(err).Msg("pass failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.logger.Debug().Msg("executing scheduled pass")
			if err := pass(ctx, time.Now().UTC()); err != nil {
				s.logger.Error().Err(err).Msg("pass failed")
			}
		}
	}
}
