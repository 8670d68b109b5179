package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStateStore keeps the scheduler's last sync time in a local file.
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a new FileStateStore that reads/writes to the given path.
func NewFileStateStore(path string) (*FileStateStore, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	return &FileStateStore{path: path}, nil
}

// LastSyncTime returns the recorded last sync time, zero if the file does
// not exist yet.
func (s *FileStateStore) LastSyncTime(_ context.Context) (time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("reading state file: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time from state file: %w", err)
	}

	return t, nil
}

// SetLastSyncTime writes the last sync time to the file.
func (s *FileStateStore) SetLastSyncTime(_ context.Context, t time.Time) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if err := os.WriteFile(s.path, []byte(t.UTC().Format(time.RFC3339)+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	return nil
}
