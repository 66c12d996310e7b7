package contextkeys

import (
	"sync"

	"github.com/threadpilot/threadpilot/core"
)

// InMemoryTracker is a volatile ContextTracker implementation storing injected
// keys in a process local map keyed by session id. It is safe for concurrent
// access.
type InMemoryTracker struct {
	mu       sync.RWMutex
	injected map[int64]map[string]struct{}
}

// NewInMemoryTracker constructs an empty in-memory context tracker.
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{injected: make(map[int64]map[string]struct{})}
}

// ShouldInject reports whether key has never been marked injected for
// sessionID.
func (t *InMemoryTracker) ShouldInject(sessionID int64, key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys, ok := t.injected[sessionID]
	if !ok {
		return true
	}
	_, seen := keys[key]
	return !seen
}

// MarkInjected records key as injected for sessionID. Marking an already
// recorded key is a no-op.
func (t *InMemoryTracker) MarkInjected(sessionID int64, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys, ok := t.injected[sessionID]
	if !ok {
		keys = make(map[string]struct{})
		t.injected[sessionID] = keys
	}
	keys[key] = struct{}{}
}

// Reset clears all keys recorded for sessionID.
func (t *InMemoryTracker) Reset(sessionID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.injected, sessionID)
}

var _ core.ContextTracker = (*InMemoryTracker)(nil)
