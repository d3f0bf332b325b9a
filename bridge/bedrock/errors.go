package bedrock

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/aws/smithy-go"

	"github.com/chatbridge/chatbridge/chat"
)

// mapError classifies AWS SDK failures into the chat error taxonomy. The
// bridge never retries; callers decide what to do with each class.
func mapError(op string, limit int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// cancellation is the caller's own doing, not a transport fault
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		msg := strings.ToLower(apiErr.ErrorMessage())
		switch code {
		case "ValidationException":
			if strings.Contains(msg, "too long") || strings.Contains(msg, "too many tokens") ||
				strings.Contains(msg, "maximum context length") {
				return &chat.ContextTooLargeError{Limit: limit}
			}
			return &chat.ConfigurationError{Field: "request", Reason: apiErr.ErrorMessage()}
		case "ResourceNotFoundException":
			return &chat.ConfigurationError{Field: "model", Reason: apiErr.ErrorMessage()}
		}
	}

	return &chat.TransportError{Op: op, Err: err}
}
