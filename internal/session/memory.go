package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShardCount = 16

type shard struct {
	mu     sync.Mutex
	byUser map[string]Session
}

// MemoryStore is a sharded in-memory Store. A user ID always hashes to the
// same shard and every operation on it runs under that shard's lock, so
// concurrent messages from one user serialize while different users mostly
// proceed in parallel. Sessions are lost on restart, which matches their
// short lifetime.
type MemoryStore struct {
	shards []*shard
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithShardCount sets the number of shards. Values below one are ignored.
func WithShardCount(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n >= 1 {
			s.shards = make([]*shard, n)
		}
	}
}

// NewMemoryStore returns an empty sharded store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{shards: make([]*shard, defaultShardCount)}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{byUser: make(map[string]Session)}
	}
	return s
}

func (s *MemoryStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[int(h.Sum32())%len(s.shards)]
}

// Get returns a copy of the user's session, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, userID string) (Session, error) {
	if ctx != nil && ctx.Err() != nil {
		return Session{}, ctx.Err()
	}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.byUser[userID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Put inserts or replaces the user's session.
func (s *MemoryStore) Put(ctx context.Context, sess Session) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if sess.UserID == "" {
		return fmt.Errorf("user id required")
	}
	sh := s.shardFor(sess.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.byUser[sess.UserID] = sess
	return nil
}

// Delete removes the user's session if present.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.byUser, userID)
	return nil
}

// Mutate runs fn against the user's session under the shard lock and applies
// the returned result, even when fn also returns an error.
func (s *MemoryStore) Mutate(ctx context.Context, userID string, fn MutateFunc) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if userID == "" {
		return fmt.Errorf("user id required")
	}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, found := sh.byUser[userID]
	if !found {
		sess = Session{UserID: userID}
	}
	result, err := fn(&sess, found)
	switch result {
	case DropSession:
		delete(sh.byUser, userID)
	case KeepSession:
		sess.UserID = userID
		sh.byUser[userID] = sess
	}
	return err
}

// ActiveCount reports how many sessions are stored across all shards.
func (s *MemoryStore) ActiveCount(ctx context.Context) (int, error) {
	if ctx != nil && ctx.Err() != nil {
		return 0, ctx.Err()
	}
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.byUser)
		sh.mu.Unlock()
	}
	return total, nil
}

// PruneExpired removes every session whose deadline has passed and returns
// the removed sessions.
func (s *MemoryStore) PruneExpired(ctx context.Context, now time.Time) ([]Session, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var removed []Session
	for _, sh := range s.shards {
		sh.mu.Lock()
		for userID, sess := range sh.byUser {
			if sess.ExpiredAt(now) {
				delete(sh.byUser, userID)
				removed = append(removed, sess)
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}
