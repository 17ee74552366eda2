package cleanup

import (
	"context"
	"time"

	"github.com/sitework/sitework/pkg/logger"
)

// Scheduler runs the cleaner on a fixed interval until its context ends.
// Overlapping runs are not guarded; a slow run simply delays the next tick.
type Scheduler struct {
	cleaner  *Cleaner
	interval time.Duration
	opts     Options
}

func NewScheduler(c *Cleaner, interval time.Duration, opts Options) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{cleaner: c, interval: interval, opts: opts}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Infof("cleanup scheduler started interval=%s buckets=%v", s.interval, s.opts.Buckets)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("cleanup scheduler stopping")
			return
		case <-ticker.C:
			rep := s.cleaner.Run(ctx, s.opts)
			if rep.Failed() {
				logger.Warnf("cleanup run finished with errors")
			}
		}
	}
}
