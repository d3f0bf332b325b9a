package session

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gocache "github.com/patrickmn/go-cache"
)

// ErrNotFound reports a session id with no live buffer (never created, or
// expired with its TTL).
var ErrNotFound = errors.New("session not found")

// Store keeps live sessions for their lifetime and nothing longer. Expiry is
// the session-end lifecycle: when the TTL lapses the buffer is discarded.
type Store interface {
	// Get returns the session for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Put saves the session and refreshes its TTL.
	Put(ctx context.Context, s *Session) error
	// Delete discards the session's buffer immediately.
	Delete(ctx context.Context, id string) error
	// Touch refreshes the session's TTL without rewriting the buffer. Missing
	// sessions are a no-op.
	Touch(ctx context.Context, id string) error
}

// MemoryStore is the default single-process backend.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Session), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.cache.Set(s.ID, s, m.ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string) error {
	if v, ok := m.cache.Get(id); ok {
		m.cache.Set(id, v, m.ttl)
	}
	return nil
}
