package session

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long a session may stay untouched before
// SweepIdle removes it.
const DefaultIdleTimeout = 60 * time.Minute

type entry struct {
	history    []Turn
	createdAt  time.Time
	lastActive time.Time
}

// Store is the authoritative in-memory registry of sessions. A single
// read-write mutex guards the map, so appends to the same session are
// serialized and a sweep never races with an append. The clock is
// injectable for deterministic tests.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	now   func() time.Time
	newID func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create allocates a session with an empty history and returns its ID.
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	now := s.now()
	s.sessions[id] = &entry{createdAt: now, lastActive: now}
	return id
}

// Get returns a snapshot of the session and refreshes its last-active
// time. The bool is false when the session does not exist.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	e.lastActive = s.now()
	return e.snapshot(id), true
}

// Append adds turn to the end of the session's history and refreshes its
// last-active time. It is a no-op when the session does not exist; the
// return value reports whether the turn was stored.
func (s *Store) Append(id string, turn Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return false
	}
	e.history = append(e.history, turn)
	e.lastActive = s.now()
	return true
}

// Clear empties the session's history and refreshes its last-active time.
// It is a no-op when the session does not exist.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return false
	}
	e.history = nil
	e.lastActive = s.now()
	return true
}

// Delete removes the session. It is a no-op when the session does not
// exist.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// SweepIdle deletes every session whose last-active time is older than
// now - timeout and returns how many were removed.
func (s *Store) SweepIdle(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-timeout)
	swept := 0
	for id, e := range s.sessions {
		if e.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			swept++
		}
	}
	return swept
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// List returns a summary of every session, most recently active first.
// It does not refresh last-active times.
func (s *Store) List() []Info {
	s.mu.RLock()
	infos := make([]Info, 0, len(s.sessions))
	for id, e := range s.sessions {
		infos = append(infos, Info{
			ID:         id,
			CreatedAt:  e.createdAt,
			LastActive: e.lastActive,
			Turns:      len(e.history),
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(infos, func(a, b Info) int {
		if c := b.LastActive.Compare(a.LastActive); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}

func (e *entry) snapshot(id string) Session {
	return Session{
		ID:         id,
		History:    slices.Clone(e.history),
		CreatedAt:  e.createdAt,
		LastActive: e.lastActive,
	}
}
