// Package blobstore is the filesystem half of the disk engine: it reads,
// writes, and deletes out-of-line values under a data directory, and
// implements the trash-then-background-empty pattern that makes
// remove-all near-instantaneous.
package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/agentuity/kvcache/logger"
)

// Store manages the data/ and trash/ directories under an engine root.
// Write is not required to be atomic: a crash between Write and the
// manifest commit leaves an orphan file, which is harmless (spec §4.3).
type Store struct {
	root      string
	dataDir   string
	trashDir  string
	log       logger.Logger

	drainOnce sync.Once
	drainCh   chan string
	drainWG   sync.WaitGroup
	drainDone chan struct{}
}

// Open creates (if needed) the data and trash directories under root and
// starts the single dedicated trash-drain worker.
func Open(root string, log logger.Logger) (*Store, error) {
	s := &Store{
		root:      root,
		dataDir:   filepath.Join(root, "data"),
		trashDir:  filepath.Join(root, "trash"),
		log:       log,
		drainCh:   make(chan string, 64),
		drainDone: make(chan struct{}),
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.trashDir, 0o755); err != nil {
		return nil, err
	}
	s.drainWG.Add(1)
	go s.drainWorker()
	return s, nil
}

// DataDir returns the directory out-of-line values are written to.
func (s *Store) DataDir() string { return s.dataDir }

// Write writes bytes to name under the data directory.
func (s *Store) Write(name string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dataDir, name), data, 0o644)
}

// Read reads name from the data directory.
func (s *Store) Read(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dataDir, name))
}

// Delete removes name from the data directory. A missing file is not an
// error — the caller may be cleaning up after a self-heal.
func (s *Store) Delete(name string) error {
	err := os.Remove(filepath.Join(s.dataDir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists reports whether name is present in the data directory.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dataDir, name))
	return err == nil
}

// MoveAllToTrash renames the data directory to a fresh UUID-named path
// under the trash directory, then recreates an empty data directory. This
// is the fast path RemoveAll relies on: a rename is near-instant regardless
// of how many files the data directory holds.
func (s *Store) MoveAllToTrash() error {
	dest := filepath.Join(s.trashDir, uuid.NewString())
	if err := os.Rename(s.dataDir, dest); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return err
	}
	s.drainCh <- dest
	return nil
}

// EmptyTrashAsync enumerates every entry currently under the trash
// directory and enqueues it for background deletion. The enumeration runs
// on the caller, and enqueueing waits only while the 64-entry queue is
// full; the deletions themselves happen on the single dedicated worker goroutine
// started in Open, mirroring the background-goroutine shape the teacher
// package uses for periodic cache cleanup (cache/inmemory.go, cache/sqlite.go).
func (s *Store) EmptyTrashAsync() error {
	entries, err := os.ReadDir(s.trashDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		s.drainCh <- filepath.Join(s.trashDir, e.Name())
	}
	return nil
}

func (s *Store) drainWorker() {
	defer s.drainWG.Done()
	for {
		select {
		case path, ok := <-s.drainCh:
			if !ok {
				return
			}
			if err := os.RemoveAll(path); err != nil && s.log != nil {
				s.log.Warn("blobstore: trash drain failed", "path", path, "error", err)
			}
		case <-s.drainDone:
			return
		}
	}
}

// Close stops accepting new trash entries and waits for the drain worker
// to finish whatever it already picked up. It does not wait for the full
// trash directory to be emptied — EmptyTrashAsync enqueues paths the
// worker drains at its own pace; Close only shuts the worker down cleanly.
func (s *Store) Close() {
	s.drainOnce.Do(func() {
		close(s.drainDone)
	})
	s.drainWG.Wait()
}

// Reset is the crash-recovery primitive: remove the sqlite database files
// and move the data directory to trash, scheduling its drain. The caller
// must have closed the database handle first.
func Reset(ctx context.Context, root string, log logger.Logger) (*Store, error) {
	for _, suffix := range []string{"", "-shm", "-wal"} {
		_ = os.Remove(filepath.Join(root, "manifest.sqlite"+suffix))
	}
	dataDir := filepath.Join(root, "data")
	trashDir := filepath.Join(root, "trash")
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(dataDir); err == nil {
		dest := filepath.Join(trashDir, uuid.NewString())
		if err := os.Rename(dataDir, dest); err != nil && log != nil {
			log.Warn("blobstore: reset rename failed", "error", err)
		}
	}
	s, err := Open(root, log)
	if err != nil {
		return nil, err
	}
	if err := s.EmptyTrashAsync(); err != nil && log != nil {
		log.Warn("blobstore: reset drain failed", "error", err)
	}
	return s, nil
}
