package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/metrics"
)

// Instrument wraps a Runner so every call is timed and logged. names maps
// operation ids to the operation names used as metric labels; unknown ids
// are labelled with the id itself.
func Instrument(r Runner, names map[string]string, rec metrics.Recorder, logger *slog.Logger) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &instrumented{
		next:    r,
		names:   names,
		metrics: metrics.OrNoop(rec),
		logger:  logger.With("component", "runner"),
	}
}

type instrumented struct {
	next    Runner
	names   map[string]string
	metrics metrics.Recorder
	logger  *slog.Logger
}

func (i *instrumented) Run(ctx context.Context, operationID string, inputs map[string]any, onChunk ChunkFunc) (*Result, error) {
	name, ok := i.names[operationID]
	if !ok {
		name = operationID
	}

	start := time.Now()
	res, err := i.next.Run(ctx, operationID, inputs, onChunk)
	elapsed := time.Since(start)
	i.metrics.ObserveJobDuration(name, elapsed, metrics.ResultFor(err))

	if err != nil {
		i.logger.Warn("operation failed", "operation", name, "duration", elapsed, "error", err)
		return nil, err
	}
	i.logger.Debug("operation completed", "operation", name, "duration", elapsed, "kind", res.Kind())
	return res, nil
}
