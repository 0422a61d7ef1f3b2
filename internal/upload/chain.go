package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/metrics"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

// ChainConfig configures a fallback chain.
type ChainConfig struct {
	Backends []Backend     // tried in order
	Timeout  time.Duration // per attempt (default: 60s)
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

// Chain uploads to the first backend that accepts the file.
// A failed backend is never retried within one Upload call.
type Chain struct {
	backends []Backend
	timeout  time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewChain creates a fallback chain.
func NewChain(cfg ChainConfig) *Chain {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Chain{
		backends: cfg.Backends,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With("component", "upload_chain"),
		metrics:  metrics.OrNoop(cfg.Metrics),
	}
}

// Backends returns the backend names in fallback order.
func (c *Chain) Backends() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return names
}

// Upload tries each backend once, in order, and returns the document
// created by the first success. When all fail the error wraps
// ErrUploadExhausted and lists every backend failure.
func (c *Chain) Upload(ctx context.Context, f File) (types.Document, error) {
	if len(c.backends) == 0 {
		return types.Document{}, fmt.Errorf("%w: no backends configured", ErrUploadExhausted)
	}

	var (
		next int
		doc  types.Document
	)
	err := retry.Do(
		func() error {
			b := c.backends[next]
			next++

			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			u, err := b.Upload(attemptCtx, f)
			c.metrics.IncUploadAttempt(b.Name(), metrics.ResultFor(err))
			if err != nil {
				c.logger.Warn("upload backend failed",
					"backend", b.Name(),
					"file", f.Name,
					"duration", time.Since(start),
					"error", err,
				)
				return fmt.Errorf("%s: %w", b.Name(), err)
			}

			c.logger.Info("uploaded document", "backend", b.Name(), "file", f.Name, "url", u)
			doc = types.Document{
				Name:      f.Name,
				RemoteURL: u,
				MimeType:  f.MimeType,
				Backend:   b.Name(),
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(len(c.backends))),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(false),
	)
	if err != nil {
		return types.Document{}, fmt.Errorf("%w: %w", ErrUploadExhausted, err)
	}
	return doc, nil
}
