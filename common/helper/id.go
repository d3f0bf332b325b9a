package helper

import (
	"github.com/chatbridge/chatbridge/common/random"
)

// RequestIdKey is both the gin context key and the response header carrying
// the per-request identifier.
const RequestIdKey = "X-Chatbridge-Request-Id"

// GenRequestID produces a sortable unique id: timestamp prefix plus random suffix.
func GenRequestID() string {
	return GetTimeString() + random.GetRandomString(8)
}
