// Package file persists the learning snapshot as a single JSON document on
// disk, guarded by an advisory lock file so concurrent bot processes cannot
// interleave read-modify-write cycles.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// LockConfig controls advisory lock acquisition.
type LockConfig struct {
	// Retries is the number of acquisition attempts before ErrLockTimeout.
	Retries int
	// RetryDelay is the base delay between attempts, doubled each retry.
	RetryDelay time.Duration
	// StaleAfter is the age past which a lock file left by a dead process
	// is broken and reclaimed.
	StaleAfter time.Duration
}

// DefaultLockConfig returns lock settings suited to sub-second save cycles.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		Retries:    10,
		RetryDelay: 50 * time.Millisecond,
		StaleAfter: 30 * time.Second,
	}
}

// SnapshotStore is a file-backed implementation of storage.SnapshotStore.
type SnapshotStore struct {
	path string
	lock LockConfig
}

// NewSnapshotStore creates a store writing to path. The parent directory is
// created on the first Save.
func NewSnapshotStore(path string, lock LockConfig) *SnapshotStore {
	if lock.Retries <= 0 {
		lock = DefaultLockConfig()
	}
	return &SnapshotStore{path: path, lock: lock}
}

// Save writes the snapshot atomically: marshal to a temp file in the same
// directory, then rename over the target while holding the advisory lock.
func (s *SnapshotStore) Save(ctx context.Context, snap *domain.LearningSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads and unmarshals the snapshot document.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.LearningSnapshot, error) {
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.LearningSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Performance == nil {
		snap.Performance = make(map[string]*domain.RoutePerformance)
	}
	return &snap, nil
}

func (s *SnapshotStore) lockPath() string {
	return s.path + ".lock"
}

// acquireLock takes the advisory lock via exclusive create. A lock older
// than StaleAfter is treated as abandoned and removed before retrying.
func (s *SnapshotStore) acquireLock(ctx context.Context) (func(), error) {
	lockPath := s.lockPath()
	delay := s.lock.RetryDelay

	for attempt := 0; attempt < s.lock.Retries; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano))
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("acquire snapshot lock: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil {
			if time.Since(info.ModTime()) > s.lock.StaleAfter {
				os.Remove(lockPath)
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, storage.ErrLockTimeout
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
