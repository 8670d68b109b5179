package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peteski22/donorpulse/internal/aggregate"
	"github.com/peteski22/donorpulse/internal/domain"
	"github.com/peteski22/donorpulse/internal/givebutter"
	"github.com/peteski22/donorpulse/internal/reconcile"
	"github.com/peteski22/donorpulse/internal/storage"
)

const (
	defaultDataPageSize = 25
	defaultHistoryLimit = 50
	defaultRunTimeout   = 5 * time.Minute
	defaultTopDonors    = 10

	maxDataPageSize = 100

	// completionTimeout bounds the bookkeeping after a cycle finishes. It is
	// detached from the run deadline so a timed-out cycle still gets its run
	// recorded.
	completionTimeout = 30 * time.Second
)

// ErrSyncInProgress is returned when a trigger arrives while another cycle
// holds the gate.
var ErrSyncInProgress = errors.New("sync already in progress")

// Config holds the required configuration for creating a Service.
type Config struct {
	// DryRun indicates whether to log snapshot writes instead of persisting them.
	DryRun bool

	// History is the number of completed runs kept in memory. Default is 50.
	History int

	// Instrumentation receives run and snapshot observations. Optional.
	Instrumentation Instrumentation

	// Logger is the structured logger for the service.
	Logger *slog.Logger

	// Publisher broadcasts completed runs. Optional.
	Publisher Publisher

	// RunLog records completed runs durably. Optional.
	RunLog RunLog

	// RunTimeout bounds a full sync cycle. Default is 5 minutes.
	RunTimeout time.Duration

	// Snapshots persists versioned snapshots.
	Snapshots SnapshotStore

	// Source fetches the donor set.
	Source DonorSource

	// StateStore records the last successful sync time. Optional.
	StateStore StateStore

	// TopDonors is the leaderboard size in computed summaries. Default is 10.
	TopDonors int
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.Snapshots == nil {
		errs = append(errs, errors.New("snapshot store is required"))
	}
	if c.Source == nil {
		errs = append(errs, errors.New("donor source is required"))
	}
	return errors.Join(errs...)
}

// Service runs sync cycles and serves the resulting snapshots. One cycle at
// a time holds the gate; readers are served from an in-memory copy of the
// latest snapshot and never wait on a cycle.
type Service struct {
	dryRun       bool
	gate         *gate
	historyLimit int
	instr        Instrumentation
	logger       *slog.Logger
	publisher    Publisher
	runLog       RunLog
	runTimeout   time.Duration
	snapshots    SnapshotStore
	source       DonorSource
	stateStore   StateStore
	topDonors    int

	// mu guards the cached snapshot, its ranked view and the run history.
	// Nothing slow ever happens under it.
	mu      sync.RWMutex
	current *domain.SyncSnapshot
	nextRun time.Time
	ranked  []domain.DonorRecord
	runs    []domain.SyncRun
}

// New creates a new sync orchestration service.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	snapshots := cfg.Snapshots
	if cfg.DryRun {
		snapshots = newDryRunSnapshotStore(cfg.Snapshots, logger)
	}

	historyLimit := cfg.History
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	topDonors := cfg.TopDonors
	if topDonors <= 0 {
		topDonors = defaultTopDonors
	}

	return &Service{
		dryRun:       cfg.DryRun,
		gate:         newGate(),
		historyLimit: historyLimit,
		instr:        cfg.Instrumentation,
		logger:       logger,
		publisher:    cfg.Publisher,
		runLog:       cfg.RunLog,
		runTimeout:   runTimeout,
		snapshots:    snapshots,
		source:       cfg.Source,
		stateStore:   cfg.StateStore,
		topDonors:    topDonors,
	}, nil
}

// Hydrate warms the read path with the latest published snapshot and the
// recent run history. Called once at startup; a store with no snapshots yet
// is not an error, and a run log that cannot be read only costs history.
func (s *Service) Hydrate(ctx context.Context) error {
	if s.runLog != nil {
		runs, err := s.runLog.Recent(ctx, s.historyLimit)
		if err != nil {
			s.logger.Warn("failed to load run history", "error", err)
		} else if len(runs) > 0 {
			s.mu.Lock()
			s.runs = runs
			s.mu.Unlock()
			s.logger.Info("hydrated run history", "runs", len(runs))
		}
	}

	snapshot, err := s.snapshots.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			s.logger.Info("no published snapshot to hydrate from")
			return nil
		}
		return fmt.Errorf("loading latest snapshot: %w", err)
	}

	s.setCurrent(snapshot)
	s.logger.Info("hydrated from latest snapshot",
		"version", snapshot.Version,
		"donors", snapshot.Summary.TotalDonors)

	return nil
}

// Trigger starts a sync cycle if none is running and returns its run ID.
// The cycle itself runs in the background; ErrSyncInProgress is returned
// when another cycle holds the gate, and the caller is expected to retry on
// its next tick rather than queue.
func (s *Service) Trigger(ctx context.Context, trigger domain.Trigger) (string, error) {
	if !s.gate.CompareAndSwap(StateIdle, StateRunning) {
		return "", ErrSyncInProgress
	}

	runID := uuid.NewString()
	s.logger.Info("sync triggered", "run_id", runID, "trigger", trigger)

	go s.runCycle(context.WithoutCancel(ctx), runID, trigger)

	return runID, nil
}

// Status reports the orchestrator state, the latest published version and
// the most recent run.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		DryRun:           s.dryRun,
		NextScheduledRun: s.nextRun,
		State:            s.gate.Current(),
	}
	if s.current != nil {
		status.SnapshotVersion = s.current.Version
	}
	if len(s.runs) > 0 {
		run := s.runs[0]
		status.LastRun = &run
	}

	return status
}

// SetNextRun records when the next scheduled cycle fires. The scheduler
// calls this each time it arms its timer.
func (s *Service) SetNextRun(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRun = t
}

// Latest returns the cached latest snapshot. ok is false before the first
// snapshot is published or hydrated.
func (s *Service) Latest() (domain.SyncSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return domain.SyncSnapshot{}, false
	}

	return *s.current, true
}

// Summary returns the aggregate summary of the cached latest snapshot. ok is
// false before the first snapshot is published or hydrated.
func (s *Service) Summary() (domain.AggregateSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return domain.AggregateSummary{}, false
	}

	return s.current.Summary, true
}

// Data returns one page of the cached latest snapshot in leaderboard order.
// Page numbers start at 1; out-of-range pages and an empty cache yield an
// empty page with the totals still filled in.
func (s *Service) Data(page, pageSize int) DonorPage {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultDataPageSize
	}
	if pageSize > maxDataPageSize {
		pageSize = maxDataPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := DonorPage{
		Donors:   []domain.DonorRecord{},
		Page:     page,
		PageSize: pageSize,
	}
	if s.current == nil {
		return result
	}
	result.Total = len(s.ranked)
	result.Version = s.current.Version

	start := (page - 1) * pageSize
	if start < 0 || start >= result.Total {
		return result
	}
	end := start + pageSize
	if end > result.Total {
		end = result.Total
	}

	result.Donors = append(result.Donors, s.ranked[start:end]...)
	result.HasMore = end < result.Total

	return result
}

// History returns up to limit completed runs, newest first.
func (s *Service) History(limit int) []domain.SyncRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}

	history := make([]domain.SyncRun, limit)
	copy(history, s.runs[:limit])

	return history
}

// Snapshot retrieves a historical snapshot from the store.
func (s *Service) Snapshot(ctx context.Context, version int64) (domain.SyncSnapshot, error) {
	return s.snapshots.Get(ctx, version)
}

// Versions lists every published snapshot version from the store.
func (s *Service) Versions(ctx context.Context) ([]int64, error) {
	return s.snapshots.ListVersions(ctx)
}

// runCycle executes one full fetch, reconcile, aggregate and persist pass,
// then records the outcome and releases the gate.
func (s *Service) runCycle(ctx context.Context, runID string, trigger domain.Trigger) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	run := domain.SyncRun{
		ID:        runID,
		StartedAt: time.Now().UTC(),
		Trigger:   trigger,
	}

	snapshot, err := s.execute(ctx, &run)
	if err != nil {
		run.Error = err.Error()
		run.Outcome = classifyOutcome(err)
		s.logger.Error("sync cycle failed",
			"run_id", runID,
			"outcome", run.Outcome,
			"error", err)
	} else {
		run.Outcome = domain.OutcomeSucceeded
	}
	run.FinishedAt = time.Now().UTC()

	s.complete(ctx, run, snapshot)
}

// execute performs the cycle pipeline. Nothing is persisted unless every
// stage before the snapshot write succeeds.
func (s *Service) execute(ctx context.Context, run *domain.SyncRun) (domain.SyncSnapshot, error) {
	fetched, err := s.source.FetchDonors(ctx)
	if err != nil {
		return domain.SyncSnapshot{}, fmt.Errorf("fetching donors: %w", err)
	}
	run.Fetched = len(fetched)

	previous, err := s.previousRecords(ctx)
	if err != nil {
		return domain.SyncSnapshot{}, fmt.Errorf("loading previous snapshot: %w", err)
	}

	merged, delta, err := reconcile.Diff(previous, fetched)
	if err != nil {
		return domain.SyncSnapshot{}, fmt.Errorf("reconciling records: %w", err)
	}
	run.Added = len(delta.Added)
	run.Removed = len(delta.Removed)
	run.Updated = len(delta.Updated)

	snapshot := domain.SyncSnapshot{
		CreatedAt: time.Now().UTC(),
		Records:   merged,
		Summary:   aggregate.Summarize(merged, s.topDonors),
	}

	version, err := s.snapshots.Put(ctx, snapshot)
	if err != nil {
		return domain.SyncSnapshot{}, fmt.Errorf("persisting snapshot: %w", err)
	}
	snapshot.Version = version
	run.SnapshotVersion = version

	return snapshot, nil
}

// previousRecords returns the record set the fetched donors are diffed
// against: the cached snapshot when present, otherwise the latest published
// one. A store with no snapshots yet yields an empty set.
func (s *Service) previousRecords(ctx context.Context) (map[string]domain.DonorRecord, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current != nil {
		return current.Records, nil
	}

	snapshot, err := s.snapshots.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			return map[string]domain.DonorRecord{}, nil
		}
		return nil, err
	}

	return snapshot.Records, nil
}

// complete records a finished run, updates the read path on success, and
// walks the gate through the outcome state back to idle.
func (s *Service) complete(ctx context.Context, run domain.SyncRun, snapshot domain.SyncSnapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completionTimeout)
	defer cancel()

	outcomeState := stateFor(run.Outcome)
	s.gate.CompareAndSwap(StateRunning, outcomeState)

	if run.Outcome == domain.OutcomeSucceeded {
		s.setCurrent(snapshot)

		if s.stateStore != nil && !s.dryRun {
			if err := s.stateStore.SetLastSyncTime(ctx, run.FinishedAt); err != nil {
				s.logger.Error("failed to record last sync time", "run_id", run.ID, "error", err)
			}
		}
	}

	s.recordRun(run)

	if s.runLog != nil && !s.dryRun {
		if err := s.runLog.Append(ctx, run); err != nil {
			s.logger.Error("failed to append run to log", "run_id", run.ID, "error", err)
		}
	}

	if s.instr != nil {
		s.instr.ObserveRun(run)
		if run.Outcome == domain.OutcomeSucceeded {
			s.instr.ObserveSnapshot(snapshot)
		}
	}

	if s.publisher != nil && !s.dryRun {
		if err := s.publisher.RunCompleted(ctx, run); err != nil {
			s.logger.Error("failed to publish run event", "run_id", run.ID, "error", err)
		}
	}

	s.logRunComplete(run)

	s.gate.CompareAndSwap(outcomeState, StateIdle)
}

// setCurrent swaps the cached snapshot and its ranked view. Ranking happens
// before the lock is taken so readers never wait on it.
func (s *Service) setCurrent(snapshot domain.SyncSnapshot) {
	ranked := aggregate.Rank(snapshot.Records)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &snapshot
	s.ranked = ranked
}

func (s *Service) recordRun(run domain.SyncRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append([]domain.SyncRun{run}, s.runs...)
	if len(s.runs) > s.historyLimit {
		s.runs = s.runs[:s.historyLimit]
	}
}

// logRunComplete logs the final run summary.
func (s *Service) logRunComplete(run domain.SyncRun) {
	s.logger.Info("sync run completed",
		"run_id", run.ID,
		"trigger", run.Trigger,
		"outcome", run.Outcome,
		"fetched", run.Fetched,
		"added", run.Added,
		"updated", run.Updated,
		"removed", run.Removed,
		"snapshot_version", run.SnapshotVersion,
		"duration", run.Duration(),
		"dry_run", s.dryRun)
}

// classifyOutcome maps a cycle error to a run outcome. A fetch that
// progressed past the first page before failing is partial; either way
// nothing was persisted.
func classifyOutcome(err error) domain.Outcome {
	var fetchErr *givebutter.FetchError
	if errors.As(err, &fetchErr) && fetchErr.LastPage >= 1 {
		return domain.OutcomePartial
	}
	return domain.OutcomeFailed
}
