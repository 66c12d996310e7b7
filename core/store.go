package core

import "context"

// CreateThreadFunc produces a new remote thread id. It is invoked by a
// SessionStore at most once per session id, typically backed by
// Gateway.CreateThread.
type CreateThreadFunc func(ctx context.Context) (string, error)

// SessionStore owns the mapping from caller-visible session ids to remote
// thread ids. Implementations must be safe for concurrent use by multiple
// turn workers without external locking.
type SessionStore interface {
	// GetOrCreateThread returns the thread id mapped to sessionID, invoking
	// create to obtain one when no mapping exists. Implementations must
	// guarantee that create runs at most once per session id even under
	// concurrent first turns; a thread created by a lost race must never be
	// returned by later reads.
	GetOrCreateThread(ctx context.Context, sessionID int64, create CreateThreadFunc) (string, error)

	// Thread returns the current mapping for sessionID, if any.
	Thread(ctx context.Context, sessionID int64) (string, bool, error)

	// Clear drops the mapping for sessionID. The remote thread itself is not
	// deleted; a later turn for the same session id creates a brand-new
	// thread with no carryover of conversation history.
	Clear(ctx context.Context, sessionID int64) error
}

// ContextTracker records which context keys have already been injected into a
// session's conversation, so each key is injected at most once per session.
// Implementations hold pure in-memory state and must be safe for concurrent
// use.
type ContextTracker interface {
	// ShouldInject reports whether key has never been marked injected for
	// sessionID.
	ShouldInject(sessionID int64, key string) bool

	// MarkInjected records key as injected for sessionID. Idempotent.
	MarkInjected(sessionID int64, key string)

	// Reset clears all keys recorded for sessionID.
	Reset(sessionID int64)
}
