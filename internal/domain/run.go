package domain

import "time"

const (
	// TriggerManual marks a run requested through the API.
	TriggerManual Trigger = "manual"

	// TriggerScheduled marks a run started by the interval scheduler.
	TriggerScheduled Trigger = "scheduled"
)

const (
	// OutcomeFailed marks a run that failed with nothing persisted.
	OutcomeFailed Outcome = "failed"

	// OutcomePartial marks a run whose fetch progressed past the first page
	// before failing. Nothing is persisted; the outcome is reporting only.
	OutcomePartial Outcome = "partial"

	// OutcomeSucceeded marks a run that persisted a new snapshot.
	OutcomeSucceeded Outcome = "succeeded"
)

// Trigger identifies what started a sync run.
type Trigger string

// Outcome is the terminal result of a sync run.
type Outcome string

// SyncRun is one append-only history entry per sync attempt.
type SyncRun struct {
	// Added is the number of records added by the run.
	Added int `json:"added"`

	// Error is the failure detail for failed and partial runs.
	Error string `json:"error,omitempty"`

	// Fetched is the number of records retrieved from upstream.
	Fetched int `json:"fetched"`

	// FinishedAt is when the run reached a terminal outcome.
	FinishedAt time.Time `json:"finished_at"`

	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Outcome is the terminal result of the run.
	Outcome Outcome `json:"outcome"`

	// Removed is the number of records removed by the run.
	Removed int `json:"removed"`

	// SnapshotVersion is the version persisted by a successful run, zero otherwise.
	SnapshotVersion int64 `json:"snapshot_version,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Trigger identifies what started the run.
	Trigger Trigger `json:"trigger"`

	// Updated is the number of records updated by the run.
	Updated int `json:"updated"`
}

// Duration returns how long the run took, zero if it has not finished.
func (r SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
