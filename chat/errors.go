package chat

import "fmt"

// The bridge never retries or recovers; it classifies failures into three
// buckets and surfaces them to the caller, which leaves the conversation
// buffer untouched so the user can retry or edit the last message.

// TransportError covers network, throttling and auth failures on the path to
// the hosted model endpoint.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ContextTooLargeError reports a serialized history that exceeds the model's
// context limit, detected either by the pre-flight estimate or by the
// endpoint's own validation.
type ContextTooLargeError struct {
	PromptTokens int // estimated, 0 when the endpoint rejected without detail
	Limit        int
}

func (e *ContextTooLargeError) Error() string {
	if e.PromptTokens > 0 {
		return fmt.Sprintf("conversation of ~%d tokens exceeds context limit of %d", e.PromptTokens, e.Limit)
	}
	return fmt.Sprintf("conversation exceeds context limit of %d", e.Limit)
}

// ConfigurationError reports missing or invalid model parameters.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
