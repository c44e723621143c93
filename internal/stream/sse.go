package stream

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pleszr/skyegpt/internal/model"
)

// MediaTypeSSE is the content type for server-sent event responses.
const MediaTypeSSE = "text/event-stream"

// FormatEvent renders one event in SSE wire format. Embedded newlines in the
// payload are escaped as the two-character sequence \n so each event stays a
// single event/data line pair.
func FormatEvent(event model.StreamEvent) string {
	data := strings.ReplaceAll(event.Data, "\n", `\n`)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)
}

// WriteHeaders sets the response headers for an SSE stream.
func WriteHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", MediaTypeSSE)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}
