// Package scheduler fires sync cycles on a fixed interval, resuming the
// cadence a previous process left behind.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/peteski22/donorpulse/internal/domain"
	"github.com/peteski22/donorpulse/internal/sync"
)

const defaultInterval = 15 * time.Minute

// Syncer starts sync cycles and accepts schedule bookkeeping.
type Syncer interface {
	// SetNextRun records when the next scheduled cycle fires.
	SetNextRun(t time.Time)

	// Trigger starts a sync cycle and returns its run ID.
	Trigger(ctx context.Context, trigger domain.Trigger) (string, error)
}

// StateStore supplies the last successful sync time.
type StateStore interface {
	// LastSyncTime returns the timestamp of the last successful sync.
	LastSyncTime(ctx context.Context) (time.Time, error)
}

// Config holds the required configuration for creating a Scheduler.
type Config struct {
	// Interval between scheduled cycles. Default is 15 minutes.
	Interval time.Duration

	// Logger is the structured logger for the scheduler.
	Logger *slog.Logger

	// States supplies the last sync time so a restart resumes the cadence
	// instead of syncing immediately. Optional.
	States StateStore

	// Syncer receives the scheduled triggers.
	Syncer Syncer
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Syncer == nil {
		errs = append(errs, errors.New("syncer is required"))
	}
	return errors.Join(errs...)
}

// Scheduler triggers a sync cycle every interval. A cycle still running when
// the tick arrives is skipped, not queued.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	states   StateStore
	syncer   Syncer
}

// New creates a new scheduler.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Scheduler{
		interval: interval,
		logger:   logger,
		states:   cfg.States,
		syncer:   cfg.Syncer,
	}, nil
}

// Run fires cycles until the context is cancelled. The first cycle waits out
// whatever remains of the interval since the last recorded sync, so a fresh
// deployment syncs immediately and a restart keeps its cadence.
func (s *Scheduler) Run(ctx context.Context) error {
	first := s.firstDelay(ctx)
	s.logger.Info("scheduler started", "interval", s.interval, "first_run_in", first)

	timer := time.NewTimer(first)
	defer timer.Stop()
	s.syncer.SetNextRun(time.Now().Add(first))

	select {
	case <-ctx.Done():
		s.logger.Info("scheduler stopped")
		return ctx.Err()
	case <-timer.C:
	}
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.syncer.SetNextRun(time.Now().Add(s.interval))

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
		s.trigger(ctx)
	}
}

// firstDelay computes the wait before the first cycle from the persisted
// last sync time. No record, an unreadable store or an already elapsed
// interval all mean run now.
func (s *Scheduler) firstDelay(ctx context.Context) time.Duration {
	if s.states == nil {
		return 0
	}

	last, err := s.states.LastSyncTime(ctx)
	if err != nil {
		s.logger.Warn("failed to read last sync time", "error", err)
		return 0
	}
	if last.IsZero() {
		return 0
	}

	elapsed := time.Since(last)
	if elapsed >= s.interval {
		return 0
	}

	return s.interval - elapsed
}

func (s *Scheduler) trigger(ctx context.Context) {
	runID, err := s.syncer.Trigger(ctx, domain.TriggerScheduled)
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			s.logger.Info("skipping scheduled sync, previous cycle still running")
			return
		}
		s.logger.Error("failed to trigger scheduled sync", "error", err)
		return
	}
	s.logger.Info("scheduled sync triggered", "run_id", runID)
}
