package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the released-app API root.
	DefaultBaseURL = "https://app.wordware.ai/api/released-app"

	defaultReadTimeout = 300 * time.Second
	maxErrorBody       = 64 << 10
)

// Client implements Runner against the released-app HTTP API.
type Client struct {
	baseURL     string
	apiKey      string
	readTimeout time.Duration
	client      *http.Client
	logger      *slog.Logger
}

// NewClient creates a new generation service client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.ReadTimeout

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		readTimeout: cfg.ReadTimeout,
		// No overall timeout: streams legitimately run for minutes.
		client: &http.Client{Transport: transport},
		logger: logger.With("component", "generation_client"),
	}
}

type runRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// Run submits a job and drains its event stream.
// onChunk may be nil; the stream is read to the end either way.
func (c *Client) Run(ctx context.Context, operationID string, inputs map[string]any, onChunk ChunkFunc) (*Result, error) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	body, err := json.Marshal(runRequest{Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inputs: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	url := c.baseURL + "/" + operationID + "/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	c.logger.Debug("submitting job", "operation", operationID, "inputs", len(inputs))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RequestError{Err: causeOf(ctx, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	watchdog := time.AfterFunc(c.readTimeout, func() { cancel(ErrReadTimeout) })
	defer watchdog.Stop()

	stream := &idleReader{r: resp.Body, touch: func() { watchdog.Reset(c.readTimeout) }}
	values, chunks, err := readStream(stream, onChunk, c.logger)
	if err != nil {
		return nil, &RequestError{Err: causeOf(ctx, err)}
	}
	if values == nil {
		return nil, fmt.Errorf("%w: stream ended without an outputs event carrying values", ErrMalformedResponse)
	}

	result, err := newResult(values)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("job finished",
		"operation", operationID,
		"chunks", chunks,
		"duration", time.Since(start),
	)
	return result, nil
}

// causeOf prefers the cancellation cause recorded on ctx, so a read
// timeout surfaces as ErrReadTimeout instead of context.Canceled.
func causeOf(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", cause, err)
	}
	return err
}

// idleReader calls touch after every successful read.
type idleReader struct {
	r     io.Reader
	touch func()
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.touch()
	}
	return n, err
}
