package server

import (
	"fmt"
	"log/slog"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/config"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/metrics"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
)

// Clients builds the generation service runner and the upload chain from
// cfg. Every runner call is timed and labelled by operation name.
func Clients(cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) (providers.Runner, *upload.Chain, error) {
	if logger == nil {
		logger = slog.Default()
	}
	uploadCfg, err := cfg.ToUploadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid upload config: %w", err)
	}
	uploadCfg.Logger = logger
	uploadCfg.Metrics = rec

	client := providers.NewClient(cfg.ToClientConfig(), logger)
	runner := providers.Instrument(client, cfg.OperationLabels(), rec, logger)
	return runner, upload.NewChain(uploadCfg), nil
}

// NewEngine builds a pipeline engine from cfg.
func NewEngine(cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) (*pipeline.Engine, error) {
	runner, chain, err := Clients(cfg, logger, rec)
	if err != nil {
		return nil, err
	}
	return pipeline.NewEngine(pipeline.Config{
		Runner:                runner,
		Uploader:              chain,
		Operations:            cfg.ToOperations(),
		MaxConcurrency:        cfg.Defaults.MaxConcurrency,
		DefaultReferenceCount: cfg.Defaults.ReferenceCount,
		DefaultPageCount:      cfg.Defaults.PageCount,
		Logger:                logger,
		Metrics:               rec,
	})
}

// reload swaps the engine's clients and operations after a config change.
// The current run and its artifacts are kept.
func reload(engine *pipeline.Engine, cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) error {
	runner, chain, err := Clients(cfg, logger, rec)
	if err != nil {
		return err
	}
	engine.SetClients(runner, chain)
	engine.SetOperations(cfg.ToOperations())
	return nil
}
