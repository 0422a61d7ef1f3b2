// Package providers talks to the remote generation service.
//
// A job is an operation id plus named inputs. The service answers with a
// newline-delimited JSON event stream: zero or more "chunk" events carrying
// incremental text, then an "outputs" event carrying the final values.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransport matches any failure to reach the generation service or a
// non-2xx answer from it. Use errors.As with *RequestError for details.
var ErrTransport = errors.New("generation service transport error")

// ErrMalformedResponse is returned when a stream ends without a usable
// terminal event, or the final value lacks the shape an operation expects.
var ErrMalformedResponse = errors.New("malformed response")

// ErrReadTimeout is the cause recorded when a stream stays silent longer
// than the configured read timeout.
var ErrReadTimeout = errors.New("stream read timeout")

// ChunkFunc receives incremental text in stream order.
type ChunkFunc func(text string)

// Runner runs one job against the generation service.
type Runner interface {
	Run(ctx context.Context, operationID string, inputs map[string]any, onChunk ChunkFunc) (*Result, error)
}

// RequestError describes a failed call to the generation service.
type RequestError struct {
	StatusCode int    // 0 when no response was received
	Body       string // diagnostic body returned by the service, if any
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation service error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("generation service request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is reports ErrTransport as a match so callers can test the category.
func (e *RequestError) Is(target error) bool {
	return target == ErrTransport
}

// Config holds configuration for the generation service client.
type Config struct {
	BaseURL string
	APIKey  string
	// ReadTimeout bounds the wait for response headers and the silence
	// between stream reads (default: 300s).
	ReadTimeout time.Duration
}
