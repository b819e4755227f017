// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DraftPurger removes rascunhos older than retention.
type DraftPurger interface {
	PurgeStale(ctx context.Context, retention time.Duration) (int64, error)
}

const purgeTimeout = 10 * time.Minute

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	purger    DraftPurger
	retention time.Duration
	schedule  string
	logger    *slog.Logger
}

// NewScheduler creates a new job scheduler. schedule is a standard 5-field
// cron expression.
func NewScheduler(purger DraftPurger, schedule string, retention time.Duration, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		purger:    purger,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start begins scheduled jobs. A zero retention registers nothing.
func (s *Scheduler) Start() error {
	if s.retention <= 0 {
		s.logger.Info("draft purge disabled")
		return nil
	}
	if s.schedule == "" {
		return errors.New("purge schedule is required")
	}

	if _, err := s.cron.AddFunc(s.schedule, s.purgeStaleDrafts); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("purge_schedule", s.schedule),
		slog.Duration("retention", s.retention),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers the purge synchronously (for tests and admin use).
func (s *Scheduler) RunNow() {
	s.purgeStaleDrafts()
}

func (s *Scheduler) purgeStaleDrafts() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.purger.PurgeStale(ctx, s.retention)
	if err != nil {
		s.logger.Error("failed to purge stale drafts", slog.Any("error", err))
		return
	}

	s.logger.Info("stale draft purge completed",
		slog.Int64("drafts_purged", n),
		slog.Duration("took", time.Since(start)),
	)
}
