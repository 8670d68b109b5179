package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/peteski22/donorpulse/internal/domain"
)

// latestMarker is the file in the snapshot directory naming the most
// recently published version.
const latestMarker = "latest"

// FileSnapshotStore persists snapshots as JSON documents in a local
// directory. It serves a single local process; the mutex keeps concurrent
// writers in that process from colliding on version numbers.
type FileSnapshotStore struct {
	// dir is the directory holding snapshot documents and the latest marker.
	dir string

	// mu serializes writers.
	mu sync.Mutex

	// seq is the highest version number handed out so far.
	seq int64
}

// Put stores a snapshot under the next version number and returns it. The
// latest marker is only rewritten after the document lands on disk.
func (s *FileSnapshotStore) Put(_ context.Context, snapshot domain.SyncSnapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.seq + 1
	snapshot.Version = version

	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return 0, &PersistError{Err: err, Op: "encode", Version: version}
	}

	if err := writeFileAtomic(s.versionPath(version), body); err != nil {
		return 0, &PersistError{Err: err, Op: "store", Version: version}
	}
	s.seq = version

	marker := []byte(strconv.FormatInt(version, 10) + "\n")
	if err := writeFileAtomic(filepath.Join(s.dir, latestMarker), marker); err != nil {
		return 0, &PersistError{Err: err, Op: "publish", Version: version}
	}

	return version, nil
}

// Get retrieves the snapshot stored under the given version.
func (s *FileSnapshotStore) Get(_ context.Context, version int64) (domain.SyncSnapshot, error) {
	if version <= 0 {
		return domain.SyncSnapshot{}, errors.New("version must be positive")
	}

	data, err := os.ReadFile(s.versionPath(version))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.SyncSnapshot{}, fmt.Errorf("%w: v%d", ErrSnapshotNotFound, version)
		}
		return domain.SyncSnapshot{}, fmt.Errorf("reading snapshot file: %w", err)
	}

	var snapshot domain.SyncSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.SyncSnapshot{}, fmt.Errorf("decoding snapshot v%d: %w", version, err)
	}

	return snapshot, nil
}

// Latest retrieves the most recently published snapshot. It returns
// ErrSnapshotNotFound when no snapshot has been published.
func (s *FileSnapshotStore) Latest(ctx context.Context) (domain.SyncSnapshot, error) {
	version, err := s.LatestVersion(ctx)
	if err != nil {
		return domain.SyncSnapshot{}, err
	}
	if version == 0 {
		return domain.SyncSnapshot{}, ErrSnapshotNotFound
	}

	return s.Get(ctx, version)
}

// LatestVersion returns the version named by the latest marker, zero if the
// marker does not exist.
func (s *FileSnapshotStore) LatestVersion(_ context.Context) (int64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestMarker))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading latest marker: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing latest marker: %w", err)
	}

	return version, nil
}

// ListVersions returns every published version in ascending order.
func (s *FileSnapshotStore) ListVersions(ctx context.Context) ([]int64, error) {
	latest, err := s.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	versions := make([]int64, 0, len(entries))
	for _, entry := range entries {
		version, ok := parseSnapshotName(entry.Name())
		if !ok || version > latest {
			continue
		}
		versions = append(versions, version)
	}

	slices.Sort(versions)

	return versions, nil
}

func (s *FileSnapshotStore) versionPath(version int64) string {
	return filepath.Join(s.dir, snapshotFileName(version))
}

// writeFileAtomic writes through a temp file and rename so readers never see
// a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}

	return nil
}

// NewFileSnapshotStore creates a snapshot store rooted at the given
// directory, creating it if needed. Existing documents seed the version
// counter so a restarted process continues the chain.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory is required")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	store := &FileSnapshotStore{dir: dir}
	for _, entry := range entries {
		if version, ok := parseSnapshotName(entry.Name()); ok && version > store.seq {
			store.seq = version
		}
	}

	return store, nil
}
