package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// sseWriter emits named server-sent events with JSON payloads:
//
//	event: <name>
//	data: <json>
//
// Writes are serialized so the agent's concurrent progress callbacks cannot
// interleave frames.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// writeEvent marshals payload and writes one named frame, flushing immediately
// so the client sees it without buffering delay. Marshal errors are dropped;
// an SSE stream has no side channel to report them on.
func (s *sseWriter) writeEvent(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}
