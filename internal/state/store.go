// Package state persists the agent's on-disk state: a zero-byte activation
// sentinel and a ping counter file whose modification time anchors the last
// successful ping.
package state

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
)

const (
	activatedFile = "activated"
	countFile     = "count"
)

// Store reads and writes the agent state directory.
type Store struct {
	dir string
	mu  sync.RWMutex

	// Now is the clock used to compute counter age. Tests override it to
	// simulate elapsed intervals and clock regressions.
	Now func() time.Time

	// OnCountWrite observes every successfully persisted counter value.
	// The agent hooks it up so an in-flight variable resolution sees the
	// value that was just written instead of a stale read.
	OnCountWrite func(value int64)
}

// NewStore returns a store over dir. The directory is expected to exist;
// creating it is the installer's job, not the agent's.
func NewStore(dir string) *Store {
	return &Store{dir: dir, Now: time.Now}
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// HasActivated reports whether the activation sentinel exists.
func (s *Store) HasActivated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(filepath.Join(s.dir, activatedFile))
	return err == nil
}

// MarkActivated creates the activation sentinel. Once present it is never
// removed, so activation happens at most once per installation.
func (s *Store) MarkActivated() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, activatedFile)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return pherrors.StateWriteFailure(path, err)
	}
	return nil
}

// ReadCount returns the persisted ping counter, its age (now minus the file's
// modification time), and whether the counter file exists at all. A counter
// file with unparsable content still reports exists=true and a valid age; the
// value comes back 0 alongside the parse error so callers can degrade instead
// of aborting.
func (s *Store) ReadCount() (value int64, age time.Duration, exists bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.dir, countFile)
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, 0, false, nil
		}
		return 0, 0, false, pherrors.StateReadFailure(path, statErr)
	}
	age = s.Now().Sub(info.ModTime())

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return 0, age, true, pherrors.StateReadFailure(path, readErr)
	}
	value, parseErr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if parseErr != nil {
		return 0, age, true, pherrors.StateReadFailure(path, parseErr)
	}
	return value, age, true, nil
}

// WriteCount persists value atomically (temp file plus rename) and re-anchors
// the counter's modification time to now.
func (s *Store) WriteCount(value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, countFile)
	tempPath := path + ".tmp"
	data := []byte(strconv.FormatInt(value, 10))

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return pherrors.StateWriteFailure(tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return pherrors.StateWriteFailure(path, err)
	}

	if s.OnCountWrite != nil {
		s.OnCountWrite(value)
	}
	return nil
}
