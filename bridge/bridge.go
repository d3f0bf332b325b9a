// Package bridge defines the completion bridge contract: mapping one
// conversation history to one outbound hosted-model request and back into a
// reply turn, synchronously or as a fragment stream. Implementations live in
// subpackages (bridge/bedrock); callers own the buffer and re-supply it on
// every call, the bridge itself is stateless.
package bridge

import (
	"context"

	"github.com/chatbridge/chatbridge/chat"
)

// Usage reports the token accounting the endpoint returned for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completer turns a history into one model request. The history must be
// non-empty and end in a user turn; it is never mutated. Errors follow the
// chat taxonomy (TransportError, ContextTooLargeError, ConfigurationError)
// and are never retried internally.
type Completer interface {
	// Complete issues one synchronous request and returns the assistant turn.
	Complete(ctx context.Context, history []chat.Turn, opts Options) (chat.Turn, Usage, error)

	// CompleteStream issues one streamed request. The returned stream is a
	// finite single-consumer sequence; closing it abandons the request.
	// Usage arrives through the final stream events and is reported by the
	// implementation's metrics, not through this signature.
	CompleteStream(ctx context.Context, history []chat.Turn, opts Options) (*chat.Stream, error)

	// Models lists the short model names this bridge can resolve.
	Models() []string
}

// ValidateHistory enforces the call precondition shared by all bridges.
func ValidateHistory(history []chat.Turn) error {
	if len(history) == 0 {
		return &chat.ConfigurationError{Field: "history", Reason: "must not be empty"}
	}
	if history[len(history)-1].Role != chat.RoleUser {
		return &chat.ConfigurationError{Field: "history", Reason: "must end in a user turn"}
	}
	for i := range history {
		if !history[i].Role.Valid() {
			return &chat.ConfigurationError{Field: "history", Reason: "contains an invalid role"}
		}
	}
	return nil
}
