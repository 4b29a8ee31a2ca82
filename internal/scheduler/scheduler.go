// Package scheduler runs the periodic completion sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 5m"

// Sweeper completes every approved event whose end time has passed.
type Sweeper interface {
	SweepPast(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	logger  *slog.Logger
}

// New parses schedule as a standard five field cron expression or a descriptor such as
// "@every 5m". Overlapping runs are skipped.
func New(schedule string, sweeper Sweeper, logger *slog.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s := &Scheduler{
		sweeper: sweeper,
		timeout: time.Minute,
		logger:  logger,
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid completion schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Completion scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Completion sweep still running at shutdown")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.sweeper.SweepPast(ctx)
	if err != nil {
		s.logger.Error("Completion sweep failed", "completed", n, "error", err)
		return
	}
	s.logger.Debug("Completion sweep ran", "completed", n)
}
