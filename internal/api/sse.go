package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ferrite-ai/ferrite/internal/wire"
)

// sseWriter frames wire events as SSE "data:" records. The editor extension
// parses one JSON object per frame; no event names or ids are used.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares w for event streaming. Returns false when the
// underlying writer cannot flush (streaming is impossible).
func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: flusher}, true
}

// Send writes one event frame and flushes it to the client.
func (s *sseWriter) Send(ev wire.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
