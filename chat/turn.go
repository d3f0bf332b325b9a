// Package chat defines the conversation data model shared by the completion
// bridge, the session store, and the HTTP surface: immutable turns, the
// append-only per-session buffer, the error taxonomy, and the pull-based
// fragment stream for streamed replies.
package chat

import (
	"encoding/json"
	"sync"

	"github.com/Laisky/errors/v2"
)

// Role tags a turn with its speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one message of a conversation. Treat as immutable once created.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SystemTurn, UserTurn and AssistantTurn are shorthand constructors.
func SystemTurn(text string) Turn    { return Turn{Role: RoleSystem, Text: text} }
func UserTurn(text string) Turn      { return Turn{Role: RoleUser, Text: text} }
func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// Conversation is the ordered history of turns for one session. It only ever
// grows by appending; past turns are never reordered or rewritten. The zero
// value is usable. Safe for concurrent use: a history read may overlap the
// commit of a finished completion on the same session.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// FromTurns builds a conversation from an existing history, copying the slice
// so later appends by the caller cannot alias into the buffer.
func FromTurns(turns []Turn) *Conversation {
	c := &Conversation{turns: make([]Turn, len(turns))}
	copy(c.turns, turns)
	return c
}

// Append adds one turn at the end of the buffer.
func (c *Conversation) Append(t Turn) error {
	if !t.Role.Valid() {
		return errors.Errorf("invalid role %q", t.Role)
	}
	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
	return nil
}

// Turns returns a copy of the history in insertion order. Callers may slice
// and extend the result freely without affecting the buffer.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// LastRole reports the role of the most recent turn, false when empty.
func (c *Conversation) LastRole() (Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return "", false
	}
	return c.turns[len(c.turns)-1].Role, true
}

func (c *Conversation) Clone() *Conversation {
	return FromTurns(c.Turns())
}

// MarshalJSON encodes the buffer as a plain turn array so external session
// stores can round-trip it.
func (c *Conversation) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c.turns)
}

func (c *Conversation) UnmarshalJSON(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return errors.Wrap(err, "decode conversation")
	}
	for i := range turns {
		if !turns[i].Role.Valid() {
			return errors.Errorf("invalid role %q at index %d", turns[i].Role, i)
		}
	}
	c.mu.Lock()
	c.turns = turns
	c.mu.Unlock()
	return nil
}
