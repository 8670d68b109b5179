package sync

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/peteski22/donorpulse/internal/domain"
)

// dryRunSnapshotStore wraps a SnapshotStore and logs write operations
// instead of executing them. Reads pass through to the real store.
type dryRunSnapshotStore struct {
	counter uint64
	logger  *slog.Logger
	store   SnapshotStore
}

// newDryRunSnapshotStore creates a new dryRunSnapshotStore that wraps the given store.
func newDryRunSnapshotStore(store SnapshotStore, logger *slog.Logger) *dryRunSnapshotStore {
	return &dryRunSnapshotStore{
		logger: logger,
		store:  store,
	}
}

// Put logs what would be stored and returns a fake version number.
func (d *dryRunSnapshotStore) Put(_ context.Context, snapshot domain.SyncSnapshot) (int64, error) {
	fakeVersion := int64(atomic.AddUint64(&d.counter, 1))

	d.logger.Info("[DRY-RUN] would store snapshot",
		"fake_version", fakeVersion,
		"donors", snapshot.Summary.TotalDonors,
		"total_amount_cents", snapshot.Summary.TotalAmountCents,
		"top_donors", len(snapshot.Summary.TopDonors))

	return fakeVersion, nil
}

// Get delegates to the real store.
func (d *dryRunSnapshotStore) Get(ctx context.Context, version int64) (domain.SyncSnapshot, error) {
	return d.store.Get(ctx, version)
}

// Latest delegates to the real store.
func (d *dryRunSnapshotStore) Latest(ctx context.Context) (domain.SyncSnapshot, error) {
	return d.store.Latest(ctx)
}

// ListVersions delegates to the real store.
func (d *dryRunSnapshotStore) ListVersions(ctx context.Context) ([]int64, error) {
	return d.store.ListVersions(ctx)
}
