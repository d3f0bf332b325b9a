package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetEventStreamHeaders prepares the response for server-sent events.
// Buffering must stay off or fragments arrive in bursts instead of as produced.
func SetEventStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// CustomEvent renders one pre-formatted SSE line. gin's sse render escapes
// payloads in ways upstream-style "data: {json}" framing does not want, so
// events are written verbatim with the blank-line terminator.
type CustomEvent struct {
	Data string
}

var contentType = []string{"text/event-stream"}

func (r CustomEvent) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	_, err := w.Write([]byte(r.Data + "\n\n"))
	return err
}

func (r CustomEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if vals := header["Content-Type"]; len(vals) == 0 {
		header["Content-Type"] = contentType
	}
}
