// Package redis provides a Redis backed core.SessionStore. It keeps the
// session → thread mapping in plain string keys so multiple processes sharing
// one Redis instance resolve each chat session to the same remote thread.
//
// At-most-one thread creation per session is enforced with SET NX: the first
// writer wins, a loser discards its freshly created thread id and adopts the
// winner's. The discarded remote thread is never referenced again.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/threadpilot/threadpilot/core"
)

// DefaultKeyPrefix namespaces all keys written by the store.
const DefaultKeyPrefix = "threadpilot"

// Options configure the Redis session store.
type Options struct {
	// KeyPrefix namespaces the store's keys. Defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// Store implements core.SessionStore on top of a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a Redis session store from an existing client. The store does
// not take ownership of the client; callers remain responsible for closing it.
func New(client *redis.Client, optFns ...func(o *Options)) *Store {
	opts := Options{KeyPrefix: DefaultKeyPrefix}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, prefix: opts.KeyPrefix}
}

// GetOrCreateThread returns the thread id mapped to sessionID, invoking
// create when no mapping exists and resolving concurrent first turns via
// SET NX.
func (s *Store) GetOrCreateThread(ctx context.Context, sessionID int64, create core.CreateThreadFunc) (string, error) {
	key := s.key(sessionID)

	threadID, err := s.client.Get(ctx, key).Result()
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", core.WrapError(core.ErrTransport, "session_store_get", "redis lookup failed", err)
	}

	created, err := create(ctx)
	if err != nil {
		return "", err
	}

	stored, err := s.client.SetNX(ctx, key, created, 0).Result()
	if err != nil {
		return "", core.WrapError(core.ErrTransport, "session_store_set", "redis write failed", err)
	}
	if stored {
		return created, nil
	}

	// Lost the race: another worker mapped this session first. Adopt its
	// thread; ours is abandoned. A concurrent Clear can remove the winner's
	// key before we read it back, in which case our thread takes its place.
	winner, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		if err := s.client.Set(ctx, key, created, 0).Err(); err != nil {
			return "", core.WrapError(core.ErrTransport, "session_store_set", "redis write failed", err)
		}
		return created, nil
	}
	if err != nil {
		return "", core.WrapError(core.ErrTransport, "session_store_get", "redis lookup failed", err)
	}
	return winner, nil
}

// Thread returns the current mapping for sessionID, if any.
func (s *Store) Thread(ctx context.Context, sessionID int64) (string, bool, error) {
	threadID, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, core.WrapError(core.ErrTransport, "session_store_get", "redis lookup failed", err)
	}
	return threadID, true, nil
}

// Clear drops the mapping for sessionID.
func (s *Store) Clear(ctx context.Context, sessionID int64) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return core.WrapError(core.ErrTransport, "session_store_del", "redis delete failed", err)
	}
	return nil
}

func (s *Store) key(sessionID int64) string {
	return fmt.Sprintf("%s:session:%d:thread", s.prefix, sessionID)
}

var _ core.SessionStore = (*Store)(nil)
