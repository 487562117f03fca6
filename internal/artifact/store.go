// Package artifact persists the pipeline's JSON artifacts. Every Put replaces
// the whole artifact atomically: readers see either the previous complete
// artifact or the new one, never a partial write.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known artifact keys.
const (
	KeyRaw        = "raw.json"
	KeyEnriched   = "enriched.json"
	KeyCalculated = "calculated.json"
	KeyDecisions  = "decisions.json"
)

var (
	// ErrNotFound is returned when an artifact has not been produced yet.
	ErrNotFound = errors.New("artifact not found")
	// ErrCorrupt is returned when an artifact is not the expected shape.
	ErrCorrupt = errors.New("artifact corrupt")
)

// Store reads and atomically replaces named artifacts.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Name() string
}

// FileStore keeps artifacts as files in one directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Name() string { return "file:" + s.dir }

// Path returns the on-disk location of key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

// Put writes data to a temp file in the same directory, syncs it, then
// renames it over the previous artifact.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	committed = true
	return nil
}

// Get reads the current artifact. Readers take no lock: rename is atomic.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
