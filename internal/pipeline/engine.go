// Package pipeline implements the five-stage ebook generation state machine.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/chapters"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/metrics"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
)

var (
	// ErrDependencyNotReady is returned when a stage's predecessor is not completed.
	ErrDependencyNotReady = errors.New("dependency not ready")

	// ErrEmptyInput is returned when required user input is missing.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidInput is returned when user input is out of range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStageBusy is returned while another stage is executing.
	ErrStageBusy = errors.New("a stage is already running")

	// ErrRetryRequired is returned when a stage in error is started again
	// without calling Retry first.
	ErrRetryRequired = errors.New("stage failed; retry it first")

	// ErrAlreadyCompleted is returned when a completed stage is started again.
	ErrAlreadyCompleted = errors.New("stage already completed")
)

// Uploader pushes a document to a public blob host.
type Uploader interface {
	Upload(ctx context.Context, f upload.File) (types.Document, error)
}

// Operation is one configured remote operation.
type Operation struct {
	ID          string
	ResultField string // Preferred field for text results
}

// Operations holds every remote operation the pipeline calls.
type Operations struct {
	Compendio    Operation
	ProjectBrief Operation
	References   Operation
	Citations    Operation
	Tables       Operation
	Combine      Operation
	Skeleton     Operation
	Chapter      Operation
	Assembly     Operation
}

// Config configures an Engine.
type Config struct {
	Runner     providers.Runner
	Uploader   Uploader
	Operations Operations

	// MaxConcurrency bounds the parallel extraction calls of stage 1.
	MaxConcurrency int

	// Applied when a StructureRequest leaves them zero.
	DefaultReferenceCount int
	DefaultPageCount      string

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Engine drives one pipeline run. Stage methods block until the stage's
// remote calls finish; only one stage executes at a time.
type Engine struct {
	exec sync.Mutex // Held while a stage or edit executes

	mu       sync.RWMutex
	run      *Run
	runner   providers.Runner
	uploader Uploader

	ops                   Operations
	maxConcurrency        int
	defaultReferenceCount int
	defaultPageCount      string

	registry *Registry
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewEngine creates an engine holding a fresh run.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("pipeline: runner is required")
	}
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("pipeline: uploader is required")
	}

	registry := DefaultRegistry()
	if err := registry.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 3
	}
	refCount := cfg.DefaultReferenceCount
	if refCount == 0 {
		refCount = 25
	}
	pageCount := cfg.DefaultPageCount
	if pageCount == "" {
		pageCount = "40-50"
	}

	e := &Engine{
		run:                   NewRun(),
		runner:                cfg.Runner,
		uploader:              cfg.Uploader,
		ops:                   cfg.Operations,
		maxConcurrency:        maxConcurrency,
		defaultReferenceCount: refCount,
		defaultPageCount:      pageCount,
		registry:              registry,
		logger:                logger.With("component", "pipeline"),
		metrics:               metrics.OrNoop(cfg.Metrics),
	}
	e.logger.Info("pipeline run created", "run_id", e.run.ID)
	return e, nil
}

// SetClients swaps the runner and uploader used by subsequent stages.
// A nil argument keeps the current value.
func (e *Engine) SetClients(runner providers.Runner, uploader Uploader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if runner != nil {
		e.runner = runner
	}
	if uploader != nil {
		e.uploader = uploader
	}
}

// SetOperations replaces the remote operation ids. It waits for a
// running stage to finish.
func (e *Engine) SetOperations(ops Operations) {
	e.exec.Lock()
	defer e.exec.Unlock()
	e.ops = ops
}

// Registry returns the stage graph.
func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) clients() (providers.Runner, Uploader) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runner, e.uploader
}

// lock acquires the execution lock without waiting.
func (e *Engine) lock() error {
	if !e.exec.TryLock() {
		return ErrStageBusy
	}
	return nil
}

// execute runs fn as stage id. fn reports whether the stage is finished;
// an unfinished stage stays in_progress. Must be called with exec held.
func (e *Engine) execute(ctx context.Context, id StageID, fn func(ctx context.Context) (bool, error)) error {
	if err := e.enter(id); err != nil {
		return err
	}

	logger := e.logger.With("stage", id)
	logger.Info("stage started")
	start := time.Now()

	done, err := fn(ctx)

	elapsed := time.Since(start)
	e.metrics.ObserveStageDuration(string(id), elapsed)
	e.metrics.IncStageResult(string(id), metrics.ResultFor(err))

	if err != nil {
		e.fail(id, err)
		logger.Error("stage failed", "duration", elapsed, "error", err)
		return err
	}
	if done {
		e.setStatus(id, StatusCompleted)
		logger.Info("stage completed", "duration", elapsed)
	} else {
		logger.Info("stage step completed", "duration", elapsed)
	}
	return nil
}

// enter checks the gate for id and marks it in_progress.
func (e *Engine) enter(id StageID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	stage, ok := e.registry.Get(string(id))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}
	switch e.run.StatusOf(id) {
	case StatusError:
		return fmt.Errorf("%w: %s", ErrRetryRequired, id)
	case StatusCompleted:
		return fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}

	for _, dep := range stage.Dependencies() {
		if st := e.run.StatusOf(StageID(dep)); st != StatusCompleted {
			return fmt.Errorf("%w: %s requires %s to be completed (is %s)", ErrDependencyNotReady, id, dep, st)
		}
	}
	if id == StageAssembly && !e.run.Chapters.BookComplete() {
		p := e.run.Chapters.Progress()
		return fmt.Errorf("%w: %d of %d chapters generated", ErrDependencyNotReady, p.Completed, p.Total)
	}

	e.run.Status[id] = StatusInProgress
	delete(e.run.Errors, id)
	return nil
}

func (e *Engine) setStatus(id StageID, s Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.Status[id] = s
}

func (e *Engine) fail(id StageID, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.Status[id] = StatusError
	e.run.Errors[id] = err.Error()
}

// update applies fn to the live run under the write lock.
func (e *Engine) update(fn func(r *Run)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.run)
}

// Retry moves a stage or sub-step back to pending so it can run again and
// invalidates everything downstream of it. A failed mapping stage resumes
// after its last completed sub-step and a failed chapters stage keeps its
// cursor; otherwise the stage's own artifacts are discarded too.
func (e *Engine) Retry(id StageID) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.exec.Unlock()

	stage, ok := e.registry.Get(string(id))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	status := e.run.StatusOf(id)
	resume := status == StatusError && (id == StageMapping || id == StageChapters)
	if resume {
		if id == StageChapters && len(e.run.Chapters.Completed) > 0 {
			e.run.Status[id] = StatusInProgress
		} else {
			e.run.Status[id] = StatusPending
		}
		delete(e.run.Errors, id)
		for _, step := range MappingSteps {
			if id == StageMapping && e.run.StatusOf(step) == StatusError {
				e.run.Status[step] = StatusPending
				delete(e.run.Errors, step)
			}
		}
	} else {
		e.run.clearStage(id)
	}

	downstream := e.registry.Downstream(string(id))
	for _, name := range downstream {
		dep := StageID(name)
		if name == stage.Parent() {
			// Sibling sub-steps keep their artifacts.
			e.run.Status[dep] = StatusPending
			delete(e.run.Errors, dep)
			continue
		}
		e.run.clearStage(dep)
	}

	e.logger.Info("stage reset for retry", "stage", id, "resume", resume, "downstream", downstream)
	return nil
}

// Reset discards the run and starts a new one.
func (e *Engine) Reset() error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.exec.Unlock()

	e.mu.Lock()
	old := e.run.ID
	e.run = NewRun()
	id := e.run.ID
	e.mu.Unlock()

	e.logger.Info("pipeline run reset", "previous_run_id", old, "run_id", id)
	return nil
}

// Snapshot returns a copy of the run.
func (e *Engine) Snapshot() *Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.clone()
}

// RunID returns the id of the current run.
func (e *Engine) RunID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.ID
}

// StageStatus returns the status of a stage or sub-step.
func (e *Engine) StageStatus(id StageID) (Status, error) {
	if _, ok := e.registry.Get(string(id)); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.StatusOf(id), nil
}

// Compendio returns the extracted compendio text.
func (e *Engine) Compendio() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.Compendio
}

// ProjectBrief returns the extracted brief text, empty when none was given.
func (e *Engine) ProjectBrief() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.ProjectBrief
}

// Mapping returns one mapping artifact.
func (e *Engine) Mapping(kind types.MappingKind) (json.RawMessage, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.run.Mappings[kind]
	return m, ok
}

// Skeleton returns the book skeleton.
func (e *Engine) Skeleton() types.Skeleton {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sk := e.run.Skeleton
	sk.Chapters = append([]types.ChapterDescriptor(nil), sk.Chapters...)
	return sk
}

// Chapters returns the generated chapters in sequence order.
func (e *Engine) Chapters() []types.GeneratedChapter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.Chapters.Chapters()
}

// Chapter returns one generated chapter.
func (e *Engine) Chapter(id string) (types.GeneratedChapter, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ch, ok := e.run.Chapters.Chapter(id)
	if !ok {
		return types.GeneratedChapter{}, fmt.Errorf("%w: %s", chapters.ErrUnknownChapter, id)
	}
	return ch, nil
}

// FinalEbook returns the assembled ebook.
func (e *Engine) FinalEbook() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.FinalEbook
}

// Progress returns the chapter-generation progress.
func (e *Engine) Progress() types.RunProgress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.Progress()
}
