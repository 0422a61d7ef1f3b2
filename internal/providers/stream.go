package providers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
)

const (
	eventChunk   = "chunk"
	eventOutputs = "outputs"

	maxLoggedLine = 200
)

// streamEvent is one line of the event stream.
type streamEvent struct {
	Value struct {
		Type   string          `json:"type"`
		Value  json.RawMessage `json:"value"`
		Values json.RawMessage `json:"values"`
	} `json:"value"`
}

// readStream consumes newline-delimited JSON events until EOF.
// Chunk text is forwarded to onChunk in order. The values of the last
// outputs event that carried any are returned; nil means none was seen.
// Lines that do not parse are logged and skipped.
func readStream(r io.Reader, onChunk ChunkFunc, logger *slog.Logger) (json.RawMessage, int, error) {
	br := bufio.NewReader(r)
	var (
		values json.RawMessage
		chunks int
	)

	for {
		line, readErr := br.ReadBytes('\n')
		line = bytes.TrimSpace(line)

		if len(line) > 0 {
			var ev streamEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				logger.Warn("skipping malformed stream line", "line", truncate(line), "error", err)
			} else {
				switch ev.Value.Type {
				case eventChunk:
					chunks++
					if onChunk != nil {
						onChunk(chunkText(ev.Value.Value))
					}
				case eventOutputs:
					if len(ev.Value.Values) == 0 || bytes.Equal(ev.Value.Values, []byte("null")) {
						logger.Warn("skipping outputs event without values")
					} else {
						values = ev.Value.Values
					}
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return values, chunks, nil
			}
			return nil, chunks, readErr
		}
	}
}

// chunkText decodes a chunk payload. Non-string payloads are passed
// through as their JSON text.
func chunkText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(line []byte) string {
	if len(line) <= maxLoggedLine {
		return string(line)
	}
	return string(line[:maxLoggedLine]) + "..."
}
