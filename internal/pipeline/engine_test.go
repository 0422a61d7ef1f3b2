package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/chapters"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
)

var testOps = Operations{
	Compendio:    Operation{ID: "op-compendio"},
	ProjectBrief: Operation{ID: "op-brief"},
	References:   Operation{ID: "op-refs"},
	Citations:    Operation{ID: "op-cites"},
	Tables:       Operation{ID: "op-tables"},
	Combine:      Operation{ID: "op-combine"},
	Skeleton:     Operation{ID: "op-skeleton"},
	Chapter:      Operation{ID: "op-chapter"},
	Assembly:     Operation{ID: "op-assembly"},
}

const skeletonDoc = `{"EsqueletoMaestro": {"esqueletoLogica": {
	"estructura_capitulos": ["Uno | a", "Dos"],
	"arco_narrativo": "arco"
}}}`

// fakeUploader fails for file names listed in fail.
type fakeUploader struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeUploader) Upload(ctx context.Context, file upload.File) (types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, file.Name)
	if f.fail[file.Name] {
		return types.Document{}, fmt.Errorf("%w: all backends failed", upload.ErrUploadExhausted)
	}
	return types.Document{
		Name:      file.Name,
		RemoteURL: "https://files.example/" + file.Name,
		MimeType:  file.MimeType,
		Backend:   "catbox",
	}, nil
}

func structured(t *testing.T, doc string) *providers.Result {
	t.Helper()
	res, err := providers.NewStructuredResult(json.RawMessage(doc))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func chapterDoc(title, content, next string) string {
	b, _ := json.Marshal(map[string]any{
		"generatedChapter": map[string]any{
			"chapterTitle": map[string]any{
				"chapterTitle":           title,
				"contenido_capitulo":     content,
				"resumen_para_siguiente": next,
			},
		},
	})
	return string(b)
}

// scriptedRunner returns a mock that answers every operation successfully.
func scriptedRunner(t *testing.T) *providers.MockClient {
	t.Helper()
	return providers.NewMockClient().
		On("op-compendio",
			providers.MockResponse{Result: providers.NewStringResult("part1")},
			providers.MockResponse{Result: providers.NewStringResult("part2")},
		).
		OnText("op-brief", "brief text").
		On("op-refs", providers.MockResponse{Result: structured(t, `{"refs": [1, 2]}`)}).
		On("op-cites", providers.MockResponse{Result: structured(t, `{"cites": ["c"]}`)}).
		On("op-tables", providers.MockResponse{Result: providers.NewStringResult(`{"tables": []}`)}).
		On("op-combine", providers.MockResponse{Result: providers.NewStringResult("combined prose")}).
		On("op-skeleton", providers.MockResponse{Result: structured(t, skeletonDoc)}).
		On("op-chapter",
			providers.MockResponse{Result: structured(t, chapterDoc("Uno", "primer capitulo", "ctx-1"))},
			providers.MockResponse{Result: structured(t, chapterDoc("Dos", "segundo capitulo", "ctx-2"))},
		).
		OnText("op-assembly", "# Libro final")
}

func newTestEngine(t *testing.T, runner providers.Runner, up Uploader) *Engine {
	t.Helper()
	if up == nil {
		up = &fakeUploader{}
	}
	e, err := NewEngine(Config{Runner: runner, Uploader: up, Operations: testOps})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func compendioFile() upload.File {
	return upload.File{Name: "compendio.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func assertStatus(t *testing.T, e *Engine, id StageID, want Status) {
	t.Helper()
	got, err := e.StageStatus(id)
	if err != nil {
		t.Fatalf("StageStatus(%s) error = %v", id, err)
	}
	if got != want {
		t.Errorf("StageStatus(%s) = %s, want %s", id, got, want)
	}
}

func runToStructure(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	if err := e.Ingest(ctx, IngestRequest{Compendio: compendioFile()}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := e.Map(ctx, nil); err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if err := e.Structure(ctx, StructureRequest{Topics: "historia"}, nil); err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	ctx := context.Background()
	runner := scriptedRunner(t)
	// One extraction at a time so the compendio halves arrive in order.
	e, err := NewEngine(Config{Runner: runner, Uploader: &fakeUploader{}, Operations: testOps, MaxConcurrency: 1})
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range Stages {
		assertStatus(t, e, id, StatusPending)
	}

	runToStructure(t, e)
	assertStatus(t, e, StageIngestion, StatusCompleted)
	assertStatus(t, e, StageMapping, StatusCompleted)
	for _, step := range MappingSteps {
		assertStatus(t, e, step, StatusCompleted)
	}
	assertStatus(t, e, StageStructure, StatusCompleted)

	if got := e.Compendio(); got != "part1\n\npart2" {
		t.Errorf("Compendio() = %q", got)
	}
	if got := e.ProjectBrief(); got != "" {
		t.Errorf("ProjectBrief() = %q, want empty without a brief", got)
	}
	if m, _ := e.Mapping(types.MappingCombined); string(m) != `"combined prose"` {
		t.Errorf("combined mapping = %s", m)
	}
	if m, _ := e.Mapping(types.MappingTables); string(m) != `{"tables":[]}` {
		t.Errorf("tables mapping = %s", m)
	}

	ch1, err := e.GenerateNextChapter(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateNextChapter() error = %v", err)
	}
	if ch1.ID != "capitulo_1" || ch1.WordCount != 2 {
		t.Errorf("chapter 1 = %+v", ch1)
	}
	assertStatus(t, e, StageChapters, StatusInProgress)

	if err := e.Assemble(ctx, nil); !errors.Is(err, ErrDependencyNotReady) {
		t.Errorf("Assemble() before book complete error = %v", err)
	}
	assertStatus(t, e, StageAssembly, StatusPending)

	if _, err := e.GenerateNextChapter(ctx, nil); err != nil {
		t.Fatalf("GenerateNextChapter() error = %v", err)
	}
	assertStatus(t, e, StageChapters, StatusCompleted)
	if p := e.Progress(); !p.BookComplete || p.Completed != 2 {
		t.Errorf("Progress() = %+v", p)
	}

	var streamed strings.Builder
	if err := e.Assemble(ctx, func(s string) { streamed.WriteString(s) }); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	assertStatus(t, e, StageAssembly, StatusCompleted)
	if e.FinalEbook() != "# Libro final" {
		t.Errorf("FinalEbook() = %q", e.FinalEbook())
	}
	if idx := e.Snapshot().CurrentStageIndex(); idx != len(Stages) {
		t.Errorf("CurrentStageIndex() = %d", idx)
	}

	assembly := runner.CallsFor("op-assembly")[0].Inputs
	if assembly["GeneratedEbook"] != "primer capitulo"+ChapterSeparator+"segundo capitulo" {
		t.Errorf("GeneratedEbook = %q", assembly["GeneratedEbook"])
	}

	chapterCalls := runner.CallsFor("op-chapter")
	if chapterCalls[1].Inputs["previous_context"] != "ctx-1" {
		t.Errorf("previous_context = %v", chapterCalls[1].Inputs["previous_context"])
	}
}

func TestEngine_IngestWithBrief(t *testing.T) {
	runner := scriptedRunner(t)
	e := newTestEngine(t, runner, nil)

	brief := upload.File{Name: "brief.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}
	if err := e.Ingest(context.Background(), IngestRequest{Compendio: compendioFile(), Brief: &brief}); err != nil {
		t.Fatal(err)
	}
	if e.ProjectBrief() != "brief text" {
		t.Errorf("ProjectBrief() = %q", e.ProjectBrief())
	}

	calls := runner.CallsFor("op-brief")
	if len(calls) != 1 {
		t.Fatalf("brief calls = %d", len(calls))
	}
	input, _ := calls[0].Inputs["ProjectBriefPDF"].(map[string]any)
	if input["file_url"] != "https://files.example/brief.pdf" {
		t.Errorf("ProjectBriefPDF = %v", calls[0].Inputs["ProjectBriefPDF"])
	}
}

func TestEngine_IngestFailures(t *testing.T) {
	t.Run("compendio upload exhausted", func(t *testing.T) {
		up := &fakeUploader{fail: map[string]bool{"compendio.pdf": true}}
		runner := scriptedRunner(t)
		e := newTestEngine(t, runner, up)

		err := e.Ingest(context.Background(), IngestRequest{Compendio: compendioFile()})
		if !errors.Is(err, upload.ErrUploadExhausted) {
			t.Fatalf("error = %v", err)
		}
		assertStatus(t, e, StageIngestion, StatusError)
		if len(runner.Calls()) != 0 {
			t.Error("extraction ran after failed upload")
		}
	})

	t.Run("brief upload failure is tolerated", func(t *testing.T) {
		up := &fakeUploader{fail: map[string]bool{"brief.pdf": true}}
		e := newTestEngine(t, scriptedRunner(t), up)
		brief := upload.File{Name: "brief.pdf", Data: []byte("x")}

		if err := e.Ingest(context.Background(), IngestRequest{Compendio: compendioFile(), Brief: &brief}); err != nil {
			t.Fatal(err)
		}
		assertStatus(t, e, StageIngestion, StatusCompleted)
		if e.ProjectBrief() != "" {
			t.Errorf("ProjectBrief() = %q", e.ProjectBrief())
		}
	})

	t.Run("one extraction fails", func(t *testing.T) {
		runner := providers.NewMockClient().On("op-compendio",
			providers.MockResponse{Result: providers.NewStringResult("part1")},
			providers.MockResponse{Err: &providers.RequestError{StatusCode: 500, Body: "boom"}},
		)
		e := newTestEngine(t, runner, nil)
		err := e.Ingest(context.Background(), IngestRequest{Compendio: compendioFile()})
		if !errors.Is(err, providers.ErrTransport) {
			t.Fatalf("error = %v, want ErrTransport", err)
		}
		assertStatus(t, e, StageIngestion, StatusError)
		if e.Compendio() != "" {
			t.Errorf("Compendio() = %q", e.Compendio())
		}
	})

	t.Run("missing compendio", func(t *testing.T) {
		e := newTestEngine(t, scriptedRunner(t), nil)
		if err := e.Ingest(context.Background(), IngestRequest{}); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("error = %v", err)
		}
		assertStatus(t, e, StageIngestion, StatusPending)
	})
}

func TestEngine_Gating(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, scriptedRunner(t), nil)

	if err := e.Map(ctx, nil); !errors.Is(err, ErrDependencyNotReady) {
		t.Errorf("Map() error = %v", err)
	}
	if err := e.Structure(ctx, StructureRequest{Topics: "x"}, nil); !errors.Is(err, ErrDependencyNotReady) {
		t.Errorf("Structure() error = %v", err)
	}
	if _, err := e.GenerateNextChapter(ctx, nil); !errors.Is(err, ErrDependencyNotReady) {
		t.Errorf("GenerateNextChapter() error = %v", err)
	}
	if err := e.Assemble(ctx, nil); !errors.Is(err, ErrDependencyNotReady) {
		t.Errorf("Assemble() error = %v", err)
	}
	for _, id := range Stages {
		assertStatus(t, e, id, StatusPending)
	}

	if err := e.Ingest(ctx, IngestRequest{Compendio: compendioFile()}); err != nil {
		t.Fatal(err)
	}
	if err := e.Ingest(ctx, IngestRequest{Compendio: compendioFile()}); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("second Ingest() error = %v", err)
	}
	if _, err := e.StageStatus("bogus"); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("StageStatus(bogus) error = %v", err)
	}
}

func TestEngine_MappingFailureAndResume(t *testing.T) {
	ctx := context.Background()
	runner := providers.NewMockClient().
		On("op-compendio", providers.MockResponse{Result: providers.NewStringResult("p")}).
		On("op-refs", providers.MockResponse{Result: structured(t, `{"refs": 1}`)}).
		On("op-cites",
			providers.MockResponse{Err: fmt.Errorf("%w: reset by peer", providers.ErrTransport)},
			providers.MockResponse{Result: structured(t, `{"cites": 2}`)},
		).
		On("op-tables", providers.MockResponse{Result: structured(t, `{"tables": 3}`)}).
		On("op-combine", providers.MockResponse{Result: structured(t, `{"all": 4}`)})
	e := newTestEngine(t, runner, nil)

	if err := e.Ingest(ctx, IngestRequest{Compendio: compendioFile()}); err != nil {
		t.Fatal(err)
	}
	err := e.Map(ctx, nil)
	if !errors.Is(err, providers.ErrTransport) {
		t.Fatalf("Map() error = %v", err)
	}
	assertStatus(t, e, StageMapping, StatusError)
	assertStatus(t, e, StepReferences, StatusCompleted)
	assertStatus(t, e, StepCitations, StatusError)
	assertStatus(t, e, StepTables, StatusPending)
	if len(runner.CallsFor("op-tables")) != 0 {
		t.Error("tables ran after citations failed")
	}
	if _, ok := e.Mapping(types.MappingReferences); !ok {
		t.Error("references artifact lost on failure")
	}
	if msg := e.Snapshot().Errors[StepCitations]; !strings.Contains(msg, "reset by peer") {
		t.Errorf("recorded error = %q", msg)
	}

	if err := e.Map(ctx, nil); !errors.Is(err, ErrRetryRequired) {
		t.Errorf("Map() without retry error = %v", err)
	}
	if err := e.Retry(StageMapping); err != nil {
		t.Fatal(err)
	}
	if err := e.Map(ctx, nil); err != nil {
		t.Fatalf("Map() after retry error = %v", err)
	}
	assertStatus(t, e, StageMapping, StatusCompleted)
	if n := len(runner.CallsFor("op-refs")); n != 1 {
		t.Errorf("references ran %d times, want 1", n)
	}

	tables := runner.CallsFor("op-tables")[0].Inputs
	if tables["2.1Mapping_Referencias"] != `{"refs": 1}` || tables["2.2Mapping_Citas"] != `{"cites": 2}` {
		t.Errorf("tables inputs = %v", tables)
	}
	combine := runner.CallsFor("op-combine")[0].Inputs
	if combine["mapeoTablas"] != `{"tables": 3}` {
		t.Errorf("combine inputs = %v", combine)
	}
}

func TestEngine_StructureValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, scriptedRunner(t), nil)
	if err := e.Ingest(ctx, IngestRequest{Compendio: compendioFile()}); err != nil {
		t.Fatal(err)
	}
	if err := e.Map(ctx, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  StructureRequest
		is   error
	}{
		{"empty topics", StructureRequest{Topics: "  "}, ErrEmptyInput},
		{"too many references", StructureRequest{Topics: "x", ReferenceCount: 51}, ErrInvalidInput},
		{"negative references", StructureRequest{Topics: "x", ReferenceCount: -1}, ErrInvalidInput},
		{"bad page count", StructureRequest{Topics: "x", PageCount: "10-20"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Structure(ctx, tt.req, nil); !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
			assertStatus(t, e, StageStructure, StatusPending)
		})
	}

	runner := scriptedRunner(t)
	e.SetClients(runner, nil)
	if err := e.Structure(ctx, StructureRequest{Topics: "historia", AISubtopics: true}, nil); err != nil {
		t.Fatal(err)
	}
	inputs := runner.CallsFor("op-skeleton")[0].Inputs
	if inputs["subtemas"] != false || inputs["referenceCount"] != 25 || inputs["pageCount"] != "40-50" {
		t.Errorf("skeleton inputs = %v", inputs)
	}
	if got := e.Skeleton().ChapterIDs(); len(got) != 2 {
		t.Errorf("ChapterIDs() = %v", got)
	}
}

func TestEngine_ChapterFailureKeepsCursor(t *testing.T) {
	ctx := context.Background()
	runner := scriptedRunner(t)
	e := newTestEngine(t, runner, nil)
	runToStructure(t, e)

	failing := providers.NewMockClient().
		On("op-chapter", providers.MockResponse{Result: structured(t, `{"unexpected": true}`)})
	e.SetClients(failing, nil)

	if _, err := e.GenerateNextChapter(ctx, nil); !errors.Is(err, providers.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	assertStatus(t, e, StageChapters, StatusError)
	if next, _ := e.Snapshot().Chapters.Next(); next != "capitulo_1" {
		t.Errorf("Next() = %q after failure", next)
	}
	if _, err := e.GenerateNextChapter(ctx, nil); !errors.Is(err, ErrRetryRequired) {
		t.Errorf("error = %v, want ErrRetryRequired", err)
	}

	e.SetClients(runner, nil)
	if err := e.Retry(StageChapters); err != nil {
		t.Fatal(err)
	}
	ch, err := e.GenerateNextChapter(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ch.ID != "capitulo_1" {
		t.Errorf("generated %s, want capitulo_1", ch.ID)
	}
}

func TestEngine_EditChapter(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, scriptedRunner(t), nil)
	runToStructure(t, e)
	if _, err := e.GenerateNextChapter(ctx, nil); err != nil {
		t.Fatal(err)
	}

	summary := "nuevo resumen"
	ch, err := e.EditChapter("capitulo_1", "uno dos tres", &summary)
	if err != nil {
		t.Fatal(err)
	}
	if ch.WordCount != 3 {
		t.Errorf("WordCount = %d", ch.WordCount)
	}
	if got := e.Snapshot().Chapters.PreviousContext; got != summary {
		t.Errorf("PreviousContext = %q", got)
	}
	if _, err := e.EditChapter("capitulo_2", "x", nil); !errors.Is(err, chapters.ErrUnknownChapter) {
		t.Errorf("error = %v", err)
	}
}

func TestEngine_UpdateSkeleton(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, scriptedRunner(t), nil)

	if _, err := e.UpdateSkeleton([]chapters.ChapterEdit{{Title: "x"}}, nil); !errors.Is(err, ErrDependencyNotReady) {
		t.Errorf("error = %v", err)
	}

	runToStructure(t, e)
	if _, err := e.GenerateNextChapter(ctx, nil); err != nil {
		t.Fatal(err)
	}

	arc := "otro arco"
	sk, err := e.UpdateSkeleton([]chapters.ChapterEdit{
		{Title: "Uno"}, {Title: "Dos"}, {Title: "Tres", Subtopics: []string{"t1"}},
	}, &arc)
	if err != nil {
		t.Fatal(err)
	}
	if len(sk.Chapters) != 3 || sk.NarrativeArc != "otro arco" {
		t.Errorf("skeleton = %+v", sk)
	}
	assertStatus(t, e, StageChapters, StatusPending)
	if p := e.Progress(); p.Total != 3 || p.Completed != 0 {
		t.Errorf("Progress() = %+v", p)
	}

	if _, err := e.UpdateSkeleton(nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty edit error = %v", err)
	}
}

func TestEngine_RetryCascade(t *testing.T) {
	e := newTestEngine(t, scriptedRunner(t), nil)
	runToStructure(t, e)

	if err := e.Retry(StageIngestion); err != nil {
		t.Fatal(err)
	}
	for _, id := range append(append([]StageID{}, Stages...), MappingSteps...) {
		assertStatus(t, e, id, StatusPending)
	}
	snap := e.Snapshot()
	if snap.Compendio != "" || len(snap.Mappings) != 0 || !snap.Skeleton.IsZero() {
		t.Errorf("artifacts survived retry: %+v", snap)
	}

	if err := e.Retry("bogus"); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("error = %v", err)
	}
}

func TestEngine_RetrySubStep(t *testing.T) {
	e := newTestEngine(t, scriptedRunner(t), nil)
	runToStructure(t, e)

	if err := e.Retry(StepTables); err != nil {
		t.Fatal(err)
	}
	assertStatus(t, e, StepReferences, StatusCompleted)
	assertStatus(t, e, StepCitations, StatusCompleted)
	assertStatus(t, e, StepTables, StatusPending)
	assertStatus(t, e, StepCombine, StatusPending)
	assertStatus(t, e, StageMapping, StatusPending)
	assertStatus(t, e, StageStructure, StatusPending)
	if _, ok := e.Mapping(types.MappingCitations); !ok {
		t.Error("citations artifact discarded")
	}
	if _, ok := e.Mapping(types.MappingTables); ok {
		t.Error("tables artifact kept")
	}
}

func TestEngine_Reset(t *testing.T) {
	e := newTestEngine(t, scriptedRunner(t), nil)
	runToStructure(t, e)
	before := e.RunID()

	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	if e.RunID() == before {
		t.Error("Reset() kept the run id")
	}
	for _, id := range append(append([]StageID{}, Stages...), MappingSteps...) {
		assertStatus(t, e, id, StatusPending)
	}
	if e.Compendio() != "" || e.ProjectBrief() != "" || e.FinalEbook() != "" {
		t.Error("text artifacts survived reset")
	}
	if !e.Skeleton().IsZero() || len(e.Chapters()) != 0 {
		t.Error("structure artifacts survived reset")
	}
	for _, kind := range types.MappingKinds {
		if _, ok := e.Mapping(kind); ok {
			t.Errorf("mapping %s survived reset", kind)
		}
	}
	if p := e.Progress(); p.Total != 0 || p.BookComplete {
		t.Errorf("Progress() = %+v", p)
	}
}

func TestEngine_Busy(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	runner := providers.NewMockClient()
	runner.Handler = func(op string, inputs map[string]any) (*providers.Result, error) {
		if op == "op-compendio" {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
		}
		return providers.NewStringResult("text"), nil
	}
	e := newTestEngine(t, runner, nil)

	done := make(chan error, 1)
	go func() {
		done <- e.Ingest(context.Background(), IngestRequest{Compendio: compendioFile()})
	}()
	<-started

	if err := e.Reset(); !errors.Is(err, ErrStageBusy) {
		t.Errorf("Reset() while busy error = %v", err)
	}
	assertStatus(t, e, StageIngestion, StatusInProgress)

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	assertStatus(t, e, StageIngestion, StatusCompleted)
}
