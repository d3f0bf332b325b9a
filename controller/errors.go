package controller

import (
	"context"
	"net/http"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/chatbridge/chatbridge/chat"
)

// errorPayload is the body shape for every failed request. The buffer is
// always left unchanged on error, so the client may retry as-is.
func errorPayload(err error) (int, gin.H) {
	status := http.StatusInternalServerError
	errType := "internal_error"

	var confErr *chat.ConfigurationError
	var tooLarge *chat.ContextTooLargeError
	var transport *chat.TransportError
	switch {
	case errors.As(err, &confErr):
		status, errType = http.StatusBadRequest, "configuration_error"
	case errors.As(err, &tooLarge):
		status, errType = http.StatusRequestEntityTooLarge, "context_too_large"
	case errors.As(err, &transport):
		status, errType = http.StatusBadGateway, "transport_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// nginx convention for client-abandoned requests
		status, errType = 499, "request_cancelled"
	}

	return status, gin.H{"error": gin.H{
		"message": err.Error(),
		"type":    errType,
	}}
}

func abortWithError(c *gin.Context, err error) {
	status, payload := errorPayload(err)
	c.JSON(status, payload)
	c.Abort()
}
