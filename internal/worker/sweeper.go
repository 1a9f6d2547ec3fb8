package worker

import (
	"context"
	"time"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"go.uber.org/zap"
)

// Sweeper periodically fails jobs stuck in processing.
type Sweeper struct {
	jobs       service.JobService
	log        *zap.Logger
	stuckAfter time.Duration
	interval   time.Duration
}

func NewSweeper(jobs service.JobService, log *zap.Logger, cfg *config.Config) *Sweeper {
	interval := cfg.Jobs.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{jobs: jobs, log: log, stuckAfter: cfg.Jobs.StuckAfter, interval: interval}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := s.jobs.SweepStuck(ctx, s.stuckAfter)
	if n > 0 {
		s.log.Info("swept stuck jobs", zap.Int("count", n), zap.Duration("older_than", s.stuckAfter))
	}
	return n, err
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("sweep stuck jobs", zap.Error(err))
			}
		}
	}
}
