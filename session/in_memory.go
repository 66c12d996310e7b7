package session

import (
	"context"
	"sync"

	"github.com/threadpilot/threadpilot/core"
)

// InMemoryStore is a volatile SessionStore implementation storing the
// session → thread mapping in a process local map. It is safe for concurrent
// access and best suited for single-process deployments, tests and demos.
//
// Thread creation is guarded by a per-session lock rather than the store-wide
// one, so concurrent first turns for the same session id execute the create
// function exactly once while first turns for other sessions proceed
// unblocked.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*entry
}

type entry struct {
	mu       sync.Mutex
	threadID string
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[int64]*entry)}
}

// GetOrCreateThread returns the thread id mapped to sessionID, invoking
// create under the session's lock when no mapping exists yet.
func (s *InMemoryStore) GetOrCreateThread(ctx context.Context, sessionID int64, create core.CreateThreadFunc) (string, error) {
	e := s.entryFor(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.threadID != "" {
		return e.threadID, nil
	}

	threadID, err := create(ctx)
	if err != nil {
		return "", err
	}
	e.threadID = threadID
	return threadID, nil
}

// Thread returns the current mapping for sessionID, if any.
func (s *InMemoryStore) Thread(_ context.Context, sessionID int64) (string, bool, error) {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.threadID == "" {
		return "", false, nil
	}
	return e.threadID, true, nil
}

// Clear drops the mapping for sessionID. A turn already creating a thread for
// the same session keeps its entry; the next turn after Clear starts from a
// fresh one.
func (s *InMemoryStore) Clear(_ context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// entryFor returns the session's entry, allocating it under the store lock.
func (s *InMemoryStore) entryFor(sessionID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	return e
}

var _ core.SessionStore = (*InMemoryStore)(nil)
