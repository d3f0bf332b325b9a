// Package ctxkey centralizes the gin context keys shared across middlewares
// and controllers so producers and consumers stay in sync.
package ctxkey

const (
	// RequestId is a per-request unique identifier, mirrored into the
	// response header of the same name.
	// Set in: middleware/request-id.
	// Read in: controllers for log correlation.
	RequestId = "X-Chatbridge-Request-Id"

	// SessionID is the conversation session identifier resolved from the
	// session cookie (created on first contact).
	// Set in: controller session resolution.
	// Read in: chat/history handlers and log fields.
	SessionID = "session_id"

	// RequestModel is the short model name the current completion targets,
	// after defaulting from config.
	// Set in: controller/chat before calling the bridge.
	// Read in: SSE loop for chunk metadata and metrics labels.
	RequestModel = "request_model"
)
