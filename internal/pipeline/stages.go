package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/chapters"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/jobs"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
)

// ChapterSeparator joins chapter contents in the assembled ebook input.
const ChapterSeparator = "\n\n---\n\n"

// PageCountOptions are the accepted target page ranges.
var PageCountOptions = []string{"20-30", "30-40", "40-50", "50-60", "60-70", "70-80", "80-90", "90-100+"}

// Reference count bounds for structure generation.
const (
	MinReferenceCount = 1
	MaxReferenceCount = 50
)

// IngestRequest carries the source documents for stage 1.
type IngestRequest struct {
	Compendio upload.File
	Brief     *upload.File // Optional
}

// StructureRequest carries the user parameters for stage 3.
type StructureRequest struct {
	Topics         string `json:"topics"`
	ReferenceCount int    `json:"reference_count"`
	PageCount      string `json:"page_count"`
	AISubtopics    bool   `json:"ai_subtopics"` // Let the service invent subtopics
}

// Ingest uploads the source documents and extracts their text. The
// compendio is extracted twice in parallel and the halves are joined; the
// brief, when given and uploaded, is extracted alongside.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) error {
	if len(req.Compendio.Data) == 0 {
		return fmt.Errorf("%w: compendio document is required", ErrEmptyInput)
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.exec.Unlock()

	return e.execute(ctx, StageIngestion, func(ctx context.Context) (bool, error) {
		runner, uploader := e.clients()

		compendioDoc, err := uploader.Upload(ctx, req.Compendio)
		if err != nil {
			return false, fmt.Errorf("compendio upload: %w", err)
		}
		e.logger.Info("compendio uploaded", "url", compendioDoc.RemoteURL, "backend", compendioDoc.Backend)

		var briefDoc *types.Document
		if req.Brief != nil && len(req.Brief.Data) > 0 {
			doc, err := uploader.Upload(ctx, *req.Brief)
			if err != nil {
				e.logger.Warn("project brief upload failed; continuing without it", "error", err)
			} else {
				briefDoc = &doc
			}
		}

		extract := func(op Operation, input string, doc types.Document) jobs.Task[string] {
			return func(ctx context.Context) (string, error) {
				res, err := runner.Run(ctx, op.ID, map[string]any{input: doc.FileInput()}, nil)
				if err != nil {
					return "", err
				}
				return res.TextField(op.ResultField)
			}
		}
		tasks := []jobs.Task[string]{
			extract(e.ops.Compendio, "CompendioPDF", compendioDoc),
			extract(e.ops.Compendio, "CompendioPDF", compendioDoc),
		}
		if briefDoc != nil {
			tasks = append(tasks, extract(e.ops.ProjectBrief, "ProjectBriefPDF", *briefDoc))
		}

		out, err := jobs.RunAll(ctx, tasks, e.maxConcurrency)
		if err != nil {
			return false, fmt.Errorf("extraction: %w", err)
		}
		for i, o := range out[:2] {
			if strings.TrimSpace(o.Value) == "" {
				return false, fmt.Errorf("%w: compendio extraction %d returned no text", providers.ErrMalformedResponse, i+1)
			}
		}

		brief := ""
		if len(out) > 2 {
			brief = out[2].Value
		}
		e.update(func(r *Run) {
			r.CompendioDoc = &compendioDoc
			r.BriefDoc = briefDoc
			r.Compendio = out[0].Value + "\n\n" + out[1].Value
			r.ProjectBrief = brief
		})
		return true, nil
	})
}

// Map runs the four mapping sub-steps in order. Sub-steps completed by an
// earlier attempt are skipped; the first failure halts the stage.
func (e *Engine) Map(ctx context.Context, onChunk providers.ChunkFunc) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.exec.Unlock()

	return e.execute(ctx, StageMapping, func(ctx context.Context) (bool, error) {
		for _, step := range MappingSteps {
			if st, _ := e.StageStatus(step); st == StatusCompleted {
				continue
			}
			if err := e.execute(ctx, step, func(ctx context.Context) (bool, error) {
				return true, e.runMappingStep(ctx, step, onChunk)
			}); err != nil {
				return false, fmt.Errorf("%s: %w", step, err)
			}
		}
		return true, nil
	})
}

func (e *Engine) runMappingStep(ctx context.Context, step StageID, onChunk providers.ChunkFunc) error {
	snap := e.Snapshot()
	serialized := func(kind types.MappingKind) string {
		return string(snap.Mappings[kind])
	}

	var op Operation
	inputs := map[string]any{
		"compendio":    snap.Compendio,
		"projectBrief": snap.ProjectBrief,
	}
	switch step {
	case StepReferences:
		op = e.ops.References
	case StepCitations:
		op = e.ops.Citations
		inputs["2.1Mapping_Referencias"] = serialized(types.MappingReferences)
	case StepTables:
		op = e.ops.Tables
		inputs["2.1Mapping_Referencias"] = serialized(types.MappingReferences)
		inputs["2.2Mapping_Citas"] = serialized(types.MappingCitations)
	case StepCombine:
		op = e.ops.Combine
		inputs = map[string]any{
			"mapeoCitas":       serialized(types.MappingCitations),
			"mapeoReferencias": serialized(types.MappingReferences),
			"mapeoTablas":      serialized(types.MappingTables),
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStage, step)
	}

	runner, _ := e.clients()
	res, err := runner.Run(ctx, op.ID, inputs, onChunk)
	if err != nil {
		return err
	}
	artifact, err := mappingArtifact(res)
	if err != nil {
		return err
	}

	e.update(func(r *Run) { r.Mappings[stepKinds[step]] = artifact })
	e.logger.Info("mapping sub-step completed", "step", step, "bytes", len(artifact))
	return nil
}

// mappingArtifact keeps structured values as-is. Text holding JSON is
// parsed; any other text is stored as a JSON string.
func mappingArtifact(res *providers.Result) (json.RawMessage, error) {
	if res.Kind() == providers.KindStructured {
		return res.Value(), nil
	}
	if doc, err := res.JSON(); err == nil {
		return doc, nil
	}
	text, err := res.Text()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty mapping", providers.ErrMalformedResponse)
	}
	return json.Marshal(text)
}

// Normalize fills zero fields from defaults and validates the request.
func (r StructureRequest) Normalize(defaultReferences int, defaultPages string) (StructureRequest, error) {
	r.Topics = strings.TrimSpace(r.Topics)
	if r.Topics == "" {
		return r, fmt.Errorf("%w: topics are required", ErrEmptyInput)
	}
	if r.ReferenceCount == 0 {
		r.ReferenceCount = defaultReferences
	}
	if r.ReferenceCount < MinReferenceCount || r.ReferenceCount > MaxReferenceCount {
		return r, fmt.Errorf("%w: reference count %d outside %d..%d", ErrInvalidInput, r.ReferenceCount, MinReferenceCount, MaxReferenceCount)
	}
	if r.PageCount == "" {
		r.PageCount = defaultPages
	}
	if !slices.Contains(PageCountOptions, r.PageCount) {
		return r, fmt.Errorf("%w: page count %q must be one of %s", ErrInvalidInput, r.PageCount, strings.Join(PageCountOptions, ", "))
	}
	return r, nil
}

// Structure generates the book skeleton and derives the chapter sequence.
func (e *Engine) Structure(ctx context.Context, req StructureRequest, onChunk providers.ChunkFunc) error {
	req, err := req.Normalize(e.defaultReferenceCount, e.defaultPageCount)
	if err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.exec.Unlock()

	return e.execute(ctx, StageStructure, func(ctx context.Context) (bool, error) {
		snap := e.Snapshot()
		inputs := map[string]any{
			"compendio":      snap.Compendio,
			"projectBrief":   snap.ProjectBrief,
			"topicInput":     req.Topics,
			"referenceCount": req.ReferenceCount,
			"MapeoContenido": string(snap.Mappings[types.MappingCombined]),
			"pageCount":      req.PageCount,
			"subtemas":       !req.AISubtopics,
		}

		runner, _ := e.clients()
		res, err := runner.Run(ctx, e.ops.Skeleton.ID, inputs, onChunk)
		if err != nil {
			return false, err
		}
		sk, err := chapters.ParseSkeleton(res)
		if err != nil {
			return false, err
		}

		e.update(func(r *Run) {
			r.Structure = &req
			r.Skeleton = sk
			r.Chapters = chapters.NewState(sk.ChapterIDs())
		})
		e.logger.Info("skeleton generated", "chapters", len(sk.Chapters))
		return true, nil
	})
}

// UpdateSkeleton replaces the skeleton's chapter list, and its narrative
// arc when narrativeArc is non-nil. Chapter generation starts over.
func (e *Engine) UpdateSkeleton(edits []chapters.ChapterEdit, narrativeArc *string) (types.Skeleton, error) {
	if err := e.lock(); err != nil {
		return types.Skeleton{}, err
	}
	defer e.exec.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if st := e.run.StatusOf(StageStructure); st != StatusCompleted {
		return types.Skeleton{}, fmt.Errorf("%w: structure is %s", ErrDependencyNotReady, st)
	}
	sk, err := chapters.EditSkeleton(e.run.Skeleton, edits, narrativeArc)
	if err != nil {
		return types.Skeleton{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	e.run.Skeleton = sk
	e.run.clearStage(StageChapters)
	e.run.clearStage(StageAssembly)
	e.logger.Info("skeleton updated", "chapters", len(sk.Chapters))
	return sk, nil
}

// GenerateNextChapter generates the next chapter in sequence. The
// chapters stage stays in_progress until the last chapter is generated.
func (e *Engine) GenerateNextChapter(ctx context.Context, onChunk providers.ChunkFunc) (types.GeneratedChapter, error) {
	if err := e.lock(); err != nil {
		return types.GeneratedChapter{}, err
	}
	defer e.exec.Unlock()

	var generated types.GeneratedChapter
	err := e.execute(ctx, StageChapters, func(ctx context.Context) (bool, error) {
		snap := e.Snapshot()
		runner, _ := e.clients()
		seq := chapters.NewSequencer(chapters.Config{
			Runner:      runner,
			OperationID: e.ops.Chapter.ID,
			Logger:      e.logger,
			Metrics:     e.metrics,
		})

		next, ch, err := seq.GenerateNext(ctx, snap.Chapters, snap.Skeleton, snap.Compendio, onChunk)
		if err != nil {
			return false, err
		}
		generated = ch
		e.update(func(r *Run) { r.Chapters = next })
		return next.BookComplete(), nil
	})
	return generated, err
}

// EditChapter replaces a generated chapter's content and, when nextContext
// is non-nil, its hand-off summary.
func (e *Engine) EditChapter(id, content string, nextContext *string) (types.GeneratedChapter, error) {
	if err := e.lock(); err != nil {
		return types.GeneratedChapter{}, err
	}
	defer e.exec.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	next, ch, err := e.run.Chapters.Edit(id, content, nextContext)
	if err != nil {
		return types.GeneratedChapter{}, err
	}
	e.run.Chapters = next
	e.logger.Info("chapter edited", "chapter", id, "words", ch.WordCount)
	return ch, nil
}

// Assemble joins the chapters in sequence order and produces the final ebook.
func (e *Engine) Assemble(ctx context.Context, onChunk providers.ChunkFunc) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.exec.Unlock()

	return e.execute(ctx, StageAssembly, func(ctx context.Context) (bool, error) {
		snap := e.Snapshot()
		contents := make([]string, 0, len(snap.Chapters.Sequence))
		for _, ch := range snap.Chapters.Chapters() {
			contents = append(contents, ch.Content)
		}
		inputs := map[string]any{
			"GeneratedEbook":   strings.Join(contents, ChapterSeparator),
			"EsqueletoMaestro": string(snap.Skeleton.Master),
		}

		runner, _ := e.clients()
		res, err := runner.Run(ctx, e.ops.Assembly.ID, inputs, onChunk)
		if err != nil {
			return false, err
		}
		text, err := res.TextField(e.ops.Assembly.ResultField)
		if err != nil {
			return false, err
		}
		if strings.TrimSpace(text) == "" {
			return false, fmt.Errorf("%w: empty ebook", providers.ErrMalformedResponse)
		}

		e.update(func(r *Run) { r.FinalEbook = text })
		return true, nil
	})
}

