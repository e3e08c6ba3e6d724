package worker

import (
	"context"
	"time"

	"fintrack/internal/log"
)

// SweepFunc removes expired entries and reports how many went.
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper runs sweep on a fixed interval, like the periodic sync loops of a
// worker process.
type Sweeper struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
	logger   *log.Logger
}

func NewSweeper(name string, interval time.Duration, sweep SweepFunc, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Discard()
	}
	return &Sweeper{name: name, interval: interval, sweep: sweep, logger: logger.WithComponent(log.ComponentWorker)}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.runOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	n, err := s.sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Periodic sweep failed", "sweeper", s.name, log.FieldError, err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Swept expired entries", "sweeper", s.name, log.FieldCount, n)
	}
}
