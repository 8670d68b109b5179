package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/peteski22/donorpulse/internal/domain"
)

// MemorySnapshotStore keeps snapshots in process memory. Used for local runs
// and tests where nothing should touch disk or AWS.
type MemorySnapshotStore struct {
	latest    int64
	mu        sync.Mutex
	seq       int64
	snapshots map[int64]domain.SyncSnapshot
}

// NewMemorySnapshotStore creates an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[int64]domain.SyncSnapshot)}
}

// Put stores a snapshot under the next version number and returns it.
func (s *MemorySnapshotStore) Put(_ context.Context, snapshot domain.SyncSnapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	snapshot.Version = s.seq
	s.snapshots[s.seq] = snapshot
	s.latest = s.seq

	return s.seq, nil
}

// Get retrieves the snapshot stored under the given version.
func (s *MemorySnapshotStore) Get(_ context.Context, version int64) (domain.SyncSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[version]
	if !ok {
		return domain.SyncSnapshot{}, fmt.Errorf("%w: v%d", ErrSnapshotNotFound, version)
	}

	return snapshot, nil
}

// Latest retrieves the most recently stored snapshot. It returns
// ErrSnapshotNotFound when the store is empty.
func (s *MemorySnapshotStore) Latest(_ context.Context) (domain.SyncSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == 0 {
		return domain.SyncSnapshot{}, ErrSnapshotNotFound
	}

	return s.snapshots[s.latest], nil
}

// LatestVersion returns the most recently stored version number, zero when
// the store is empty.
func (s *MemorySnapshotStore) LatestVersion(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latest, nil
}

// ListVersions returns every stored version in ascending order.
func (s *MemorySnapshotStore) ListVersions(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := make([]int64, 0, len(s.snapshots))
	for version := range s.snapshots {
		versions = append(versions, version)
	}
	slices.Sort(versions)

	return versions, nil
}

// MemoryStateStore keeps the last sync time in process memory.
type MemoryStateStore struct {
	last time.Time
	mu   sync.Mutex
}

// NewMemoryStateStore creates a new MemoryStateStore with the given initial time.
func NewMemoryStateStore(since time.Time) *MemoryStateStore {
	return &MemoryStateStore{last: since}
}

// LastSyncTime returns the recorded last sync time.
func (s *MemoryStateStore) LastSyncTime(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last, nil
}

// SetLastSyncTime records the last sync time.
func (s *MemoryStateStore) SetLastSyncTime(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = t

	return nil
}
