package endpoints

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/svcctx"
)

// Stream event types.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// StreamEvent is one NDJSON line of a streamed stage response.
type StreamEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// wantsStream reports whether the caller asked for ?stream=true.
func wantsStream(r *http.Request) bool {
	return r.URL.Query().Get("stream") == "true"
}

// runStage runs fn and writes its result. With ?stream=true the response
// is NDJSON: chunk events as text arrives, then one done or error event.
// Without it, fn runs to completion and the result is written as JSON.
func runStage(w http.ResponseWriter, r *http.Request, fn func(onChunk providers.ChunkFunc) (any, error)) {
	if !wantsStream(r) {
		result, err := fn(nil)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	var (
		mu       sync.Mutex
		writeErr error
	)
	enc := json.NewEncoder(w)
	// After the first failed write the client is gone; later events are dropped.
	emit := func(ev StreamEvent) {
		mu.Lock()
		defer mu.Unlock()
		if writeErr != nil {
			return
		}
		if err := enc.Encode(ev); err != nil {
			writeErr = err
			svcctx.LoggerFrom(r.Context()).Warn("stream write failed; dropping remaining events",
				"path", r.URL.Path, "event", ev.Type, "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	result, err := fn(func(text string) {
		emit(StreamEvent{Type: EventChunk, Text: text})
	})
	if err != nil {
		emit(StreamEvent{Type: EventError, Error: err.Error()})
		return
	}
	emit(StreamEvent{Type: EventDone, Data: result})
}
