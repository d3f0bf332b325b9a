// Package session ties one conversation buffer to one UI session. The buffer
// is owned exclusively by its session and mutated only by the session's own
// request flow; a per-session gate keeps a second completion from starting
// while one is outstanding.
package session

import (
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chatbridge/chatbridge/chat"
)

// Session is the explicit context object handed through each turn-handling
// operation.
type Session struct {
	ID           string
	Conversation *chat.Conversation
	CreatedAt    time.Time

	inflight *semaphore.Weighted
}

func New(id string) *Session {
	return &Session{
		ID:           id,
		Conversation: chat.NewConversation(),
		CreatedAt:    time.Now(),
		inflight:     semaphore.NewWeighted(1),
	}
}

// TryAcquire claims the session's single in-flight completion slot without
// blocking. Callers that get true must Release when the completion settles.
func (s *Session) TryAcquire() bool {
	return s.inflight.TryAcquire(1)
}

func (s *Session) Release() {
	s.inflight.Release(1)
}
