// Package sync orchestrates the fetch, reconcile, aggregate and persist
// cycle that keeps donor snapshots current.
package sync

import (
	"context"
	"time"

	"github.com/peteski22/donorpulse/internal/domain"
)

// DonorSource fetches the complete donor set from the upstream platform.
type DonorSource interface {
	// FetchDonors returns every donor record the platform currently holds.
	FetchDonors(ctx context.Context) ([]domain.DonorRecord, error)
}

// SnapshotStore persists and retrieves versioned snapshots.
type SnapshotStore interface {
	// Put stores a snapshot under a fresh version number and returns it.
	Put(ctx context.Context, snapshot domain.SyncSnapshot) (int64, error)

	// Get retrieves the snapshot stored under the given version.
	Get(ctx context.Context, version int64) (domain.SyncSnapshot, error)

	// Latest retrieves the most recently published snapshot.
	Latest(ctx context.Context) (domain.SyncSnapshot, error)

	// ListVersions returns every published version in ascending order.
	ListVersions(ctx context.Context) ([]int64, error)
}

// RunLog records completed sync runs durably.
type RunLog interface {
	// Append stores a finished run.
	Append(ctx context.Context, run domain.SyncRun) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

// StateStore manages persistent state for the sync process.
type StateStore interface {
	// LastSyncTime returns the timestamp of the last successful sync.
	LastSyncTime(ctx context.Context) (time.Time, error)

	// SetLastSyncTime updates the last sync timestamp.
	SetLastSyncTime(ctx context.Context, t time.Time) error
}

// Publisher broadcasts completed runs to interested consumers.
type Publisher interface {
	// RunCompleted publishes a finished run.
	RunCompleted(ctx context.Context, run domain.SyncRun) error
}

// Instrumentation receives run and snapshot observations.
type Instrumentation interface {
	// ObserveRun records a completed run.
	ObserveRun(run domain.SyncRun)

	// ObserveSnapshot records a freshly published snapshot.
	ObserveSnapshot(snapshot domain.SyncSnapshot)
}

// Status describes the orchestrator as seen by readers. Reads are served
// from memory and never wait on a running cycle.
type Status struct {
	// DryRun indicates snapshot writes are logged instead of persisted.
	DryRun bool

	// LastRun is the most recent completed run, nil before the first.
	LastRun *domain.SyncRun

	// NextScheduledRun is when the scheduler fires next, zero when no
	// scheduler is attached.
	NextScheduledRun time.Time

	// SnapshotVersion is the latest published version, zero before the first.
	SnapshotVersion int64

	// State is the orchestrator's current lifecycle state.
	State State
}

// DonorPage is one page of the latest snapshot's records in leaderboard
// order: amount descending, earliest contribution and then ID breaking ties.
type DonorPage struct {
	// Donors is the page of records.
	Donors []domain.DonorRecord

	// HasMore indicates further pages follow this one.
	HasMore bool

	// Page is the 1-based page number served.
	Page int

	// PageSize is the page size the window was cut with.
	PageSize int

	// Total is the number of records in the snapshot.
	Total int

	// Version is the snapshot version the page was cut from.
	Version int64
}
