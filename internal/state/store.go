// Package state holds the current now-playing snapshot.
package state

import (
	"sync"

	"github.com/justinmdickey/nowplaying/internal/media"
)

// Store wraps the current snapshot with thread-safe access. Every change
// bumps a sequence number so consumers can order what they observe.
type Store struct {
	mu   sync.RWMutex
	snap media.Snapshot
	seq  uint64
}

// New returns an empty store at sequence 0.
func New() *Store {
	return &Store{}
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() media.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Load returns a copy of the current snapshot and its sequence number.
func (s *Store) Load() (media.Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.seq
}

// SetIfChanged replaces the snapshot if snap differs from it. It returns the
// resulting sequence number and whether a replacement happened.
func (s *Store) SetIfChanged(snap media.Snapshot) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == snap {
		return s.seq, false
	}
	s.snap = snap
	s.seq++
	return s.seq, true
}
