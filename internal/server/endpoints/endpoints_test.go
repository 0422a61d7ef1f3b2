package endpoints

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/chapters"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/home"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/svcctx"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
)

var testOps = pipeline.Operations{
	Compendio:    pipeline.Operation{ID: "op-compendio"},
	ProjectBrief: pipeline.Operation{ID: "op-brief"},
	References:   pipeline.Operation{ID: "op-refs"},
	Citations:    pipeline.Operation{ID: "op-cites"},
	Tables:       pipeline.Operation{ID: "op-tables"},
	Combine:      pipeline.Operation{ID: "op-combine"},
	Skeleton:     pipeline.Operation{ID: "op-skeleton"},
	Chapter:      pipeline.Operation{ID: "op-chapter"},
	Assembly:     pipeline.Operation{ID: "op-assembly"},
}

const skeletonDoc = `{"EsqueletoMaestro": {"esqueletoLogica": {
	"estructura_capitulos": ["Uno | a", "Dos"],
	"arco_narrativo": "arco"
}}}`

type okUploader struct{}

func (okUploader) Upload(ctx context.Context, f upload.File) (types.Document, error) {
	return types.Document{Name: f.Name, RemoteURL: "https://files.example/" + f.Name, MimeType: f.MimeType}, nil
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

func scriptedRunner(t *testing.T) *providers.MockClient {
	t.Helper()
	return providers.NewMockClient().
		OnText("op-compendio", "compendio text").
		OnText("op-brief", "brief text").
		On("op-refs", providers.MockResponse{Result: structured(t, `{"refs": [1]}`)}).
		On("op-cites", providers.MockResponse{Result: structured(t, `{"cites": ["c"]}`)}).
		OnText("op-tables", `{"tables": []}`).
		OnText("op-combine", "combined").
		On("op-skeleton", providers.MockResponse{Result: structured(t, skeletonDoc)}).
		On("op-chapter",
			providers.MockResponse{
				Chunks: []string{"primer ", "capitulo"},
				Result: structured(t, chapterDoc("Uno", "primer capitulo", "ctx-1")),
			},
			providers.MockResponse{Result: structured(t, chapterDoc("Dos", "segundo capitulo", "ctx-2"))},
		).
		OnText("op-assembly", "# Libro final\n\nTexto.")
}

// testServer serves every endpoint with the given services in context.
func testServer(t *testing.T, svc *svcctx.Services) http.Handler {
	t.Helper()
	reg := api.NewRegistry()
	for _, ep := range All(Config{}) {
		reg.Register(ep)
	}
	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if svc != nil {
			r = r.WithContext(svcctx.WithServices(r.Context(), svc))
		}
		mux.ServeHTTP(w, r)
	})
}

func newServices(t *testing.T, runner providers.Runner) *svcctx.Services {
	t.Helper()
	engine, err := pipeline.NewEngine(pipeline.Config{
		Runner:         runner,
		Uploader:       okUploader{},
		Operations:     testOps,
		MaxConcurrency: 1,
		Logger:         slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return &svcctx.Services{Engine: engine, Home: h, Logger: slog.New(slog.DiscardHandler)}
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	return do(t, h, method, target, r, "application/json")
}

func multipartBody(t *testing.T, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		part, err := mw.CreateFormFile(field, field+".md")
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func ingestCompendio(t *testing.T, h http.Handler) {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"compendio": "# Compendio\n\nTexto fuente."})
	rec := do(t, h, "POST", "/api/run/ingest", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func expectCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v; body = %s", err, rec.Body.String())
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("without engine", func(t *testing.T) {
		rec := do(t, testServer(t, nil), "GET", "/health", nil, "")
		expectCode(t, rec, http.StatusOK)
		resp := decode[HealthResponse](t, rec)
		if resp.Status != "ok" || resp.RunID != "" {
			t.Errorf("health = %+v", resp)
		}
	})

	t.Run("with engine", func(t *testing.T) {
		svc := newServices(t, providers.NewMockClient())
		rec := do(t, testServer(t, svc), "GET", "/health", nil, "")
		resp := decode[HealthResponse](t, rec)
		if resp.RunID != svc.Engine.RunID() {
			t.Errorf("RunID = %q, want %q", resp.RunID, svc.Engine.RunID())
		}
	})
}

func TestEndpoints_NoEngine(t *testing.T) {
	rec := do(t, testServer(t, nil), "GET", "/api/run", nil, "")
	expectCode(t, rec, http.StatusServiceUnavailable)
}

func TestEndpoints_FullRun(t *testing.T) {
	svc := newServices(t, scriptedRunner(t))
	h := testServer(t, svc)

	ingestCompendio(t, h)

	rec := doJSON(t, h, "GET", "/api/run/compendio", nil)
	expectCode(t, rec, http.StatusOK)
	if got := decode[CompendioResponse](t, rec).Compendio; got != "compendio text\n\ncompendio text" {
		t.Errorf("compendio = %q", got)
	}

	expectCode(t, doJSON(t, h, "POST", "/api/run/mapping", nil), http.StatusOK)

	rec = doJSON(t, h, "GET", "/api/run/mappings/references", nil)
	expectCode(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"refs": [1]}` && got != `{"refs":[1]}` {
		t.Errorf("references mapping = %s", got)
	}

	rec = doJSON(t, h, "POST", "/api/run/structure", pipeline.StructureRequest{Topics: "Historia", ReferenceCount: 10, PageCount: "30-40"})
	expectCode(t, rec, http.StatusOK)
	sk := decode[types.Skeleton](t, rec)
	if len(sk.Chapters) != 2 || sk.Chapters[0].Title != "Uno" {
		t.Fatalf("skeleton chapters = %+v", sk.Chapters)
	}

	// First chapter streams its chunks.
	rec = doJSON(t, h, "POST", "/api/run/chapters/next?stream=true", nil)
	expectCode(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}
	var events []StreamEvent
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var ev StreamEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad event line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Type != EventChunk || events[0].Text != "primer " || events[1].Text != "capitulo" {
		t.Errorf("chunk events = %+v", events[:2])
	}
	if events[2].Type != EventDone {
		t.Errorf("last event = %+v, want done", events[2])
	}

	rec = doJSON(t, h, "POST", "/api/run/chapters/next", nil)
	expectCode(t, rec, http.StatusOK)
	if ch := decode[types.GeneratedChapter](t, rec); ch.ID != chapters.ChapterID(2) {
		t.Errorf("second chapter id = %q", ch.ID)
	}

	rec = doJSON(t, h, "GET", "/api/run/chapters", nil)
	list := decode[ChapterList](t, rec)
	if len(list.Chapters) != 2 || !list.Progress.BookComplete {
		t.Errorf("chapter list = %+v", list)
	}

	expectCode(t, doJSON(t, h, "POST", "/api/run/chapters/next", nil), http.StatusConflict)

	rec = doJSON(t, h, "POST", "/api/run/assemble", nil)
	expectCode(t, rec, http.StatusOK)
	if got := decode[AssembleResponse](t, rec).Ebook; !strings.HasPrefix(got, "# Libro final") {
		t.Errorf("ebook = %q", got)
	}

	rec = doJSON(t, h, "GET", "/api/run/ebook", nil)
	expectCode(t, rec, http.StatusOK)
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown") {
		t.Errorf("markdown Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	rec = doJSON(t, h, "GET", "/api/run/ebook?format=html", nil)
	expectCode(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "<h1>Libro final</h1>") {
		t.Errorf("html ebook = %s", rec.Body.String())
	}
	rec = doJSON(t, h, "GET", "/api/run/ebook?format=epub", nil)
	expectCode(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/epub+zip" {
		t.Errorf("epub Content-Type = %q", ct)
	}
	expectCode(t, doJSON(t, h, "GET", "/api/run/ebook?format=pdf", nil), http.StatusBadRequest)

	rec = doJSON(t, h, "POST", "/api/run/export", nil)
	expectCode(t, rec, http.StatusOK)
	exp := decode[ExportResponse](t, rec)
	if len(exp.Files) == 0 {
		t.Fatal("export wrote no files")
	}
	for _, f := range exp.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("exported file missing: %v", err)
		}
	}

	rec = doJSON(t, h, "GET", "/api/run", nil)
	run := decode[RunResponse](t, rec)
	for _, s := range run.Stages {
		if s.Status != pipeline.StatusCompleted {
			t.Errorf("stage %s = %s, want completed", s.ID, s.Status)
		}
	}
	if len(run.Stages) != len(pipeline.Stages) || len(run.Stages[1].Steps) != len(pipeline.MappingSteps) {
		t.Errorf("run stages = %+v", run.Stages)
	}
}

func TestEndpoints_Errors(t *testing.T) {
	svc := newServices(t, scriptedRunner(t))
	h := testServer(t, svc)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"mapping before ingest", "POST", "/api/run/mapping", nil, http.StatusConflict},
		{"unknown stage status", "GET", "/api/run/stages/bogus", nil, http.StatusNotFound},
		{"unknown stage retry", "POST", "/api/run/stages/bogus/retry", nil, http.StatusNotFound},
		{"missing skeleton", "GET", "/api/run/skeleton", nil, http.StatusNotFound},
		{"missing compendio", "GET", "/api/run/compendio", nil, http.StatusNotFound},
		{"missing mapping", "GET", "/api/run/mappings/tables", nil, http.StatusNotFound},
		{"missing chapter", "GET", "/api/run/chapters/capitulo_9", nil, http.StatusNotFound},
		{"missing ebook", "GET", "/api/run/ebook", nil, http.StatusNotFound},
		{"assemble too early", "POST", "/api/run/assemble", nil, http.StatusConflict},
		{"skeleton edit too early", "PUT", "/api/run/skeleton", SkeletonUpdateRequest{Chapters: []chapters.ChapterEdit{{Title: "X"}}}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectCode(t, doJSON(t, h, tt.method, tt.target, tt.body), tt.want)
		})
	}

	t.Run("ingest without compendio", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"brief": "brief"})
		expectCode(t, do(t, h, "POST", "/api/run/ingest", body, ct), http.StatusBadRequest)
	})

	t.Run("ingest empty compendio", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"compendio": ""})
		expectCode(t, do(t, h, "POST", "/api/run/ingest", body, ct), http.StatusBadRequest)
	})

	t.Run("structure bad body", func(t *testing.T) {
		expectCode(t, do(t, h, "POST", "/api/run/structure", strings.NewReader("{"), "application/json"), http.StatusBadRequest)
	})
}

func TestEndpoints_StageFailureAndRetry(t *testing.T) {
	svc := newServices(t, providers.NewMockClient().
		OnText("op-compendio", "text").
		On("op-refs", providers.MockResponse{Err: fmt.Errorf("%w: boom", providers.ErrTransport)}))
	h := testServer(t, svc)
	ingestCompendio(t, h)

	expectCode(t, doJSON(t, h, "POST", "/api/run/mapping", nil), http.StatusBadGateway)

	rec := doJSON(t, h, "GET", "/api/run/stages/mapping.references", nil)
	if got := decode[StageStatusResponse](t, rec).Status; got != pipeline.StatusError {
		t.Errorf("references status = %s, want error", got)
	}

	// A stage in error must be retried before it runs again.
	expectCode(t, doJSON(t, h, "POST", "/api/run/mapping", nil), http.StatusConflict)

	rec = doJSON(t, h, "POST", "/api/run/stages/mapping.references/retry", nil)
	expectCode(t, rec, http.StatusOK)
	run := decode[RunResponse](t, rec)
	if run.Stages[1].Steps[0].Status == pipeline.StatusError {
		t.Errorf("references still in error after retry: %+v", run.Stages[1])
	}
}

func TestEndpoints_StreamError(t *testing.T) {
	svc := newServices(t, providers.NewMockClient().
		OnText("op-compendio", "text").
		On("op-refs", providers.MockResponse{Chunks: []string{"par"}, Err: fmt.Errorf("%w: cut", providers.ErrReadTimeout)}))
	h := testServer(t, svc)
	ingestCompendio(t, h)

	rec := doJSON(t, h, "POST", "/api/run/mapping?stream=true", nil)
	expectCode(t, rec, http.StatusOK)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	var last StreamEvent
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatal(err)
	}
	if last.Type != EventError || !strings.Contains(last.Error, "cut") {
		t.Errorf("last event = %+v, want error", last)
	}
}

func TestEndpoints_EditSkeletonAndChapter(t *testing.T) {
	svc := newServices(t, scriptedRunner(t))
	h := testServer(t, svc)
	ingestCompendio(t, h)
	expectCode(t, doJSON(t, h, "POST", "/api/run/mapping", nil), http.StatusOK)
	expectCode(t, doJSON(t, h, "POST", "/api/run/structure", pipeline.StructureRequest{Topics: "t"}), http.StatusOK)

	arc := "nuevo arco"
	rec := doJSON(t, h, "PUT", "/api/run/skeleton", SkeletonUpdateRequest{
		Chapters:     []chapters.ChapterEdit{{Title: "Solo", Subtopics: []string{"x", "y"}}},
		NarrativeArc: &arc,
	})
	expectCode(t, rec, http.StatusOK)
	sk := decode[types.Skeleton](t, rec)
	if len(sk.Chapters) != 1 || sk.NarrativeArc != arc {
		t.Fatalf("edited skeleton = %+v", sk)
	}

	expectCode(t, doJSON(t, h, "PUT", "/api/run/skeleton", SkeletonUpdateRequest{Chapters: []chapters.ChapterEdit{{Title: " "}}}), http.StatusBadRequest)

	expectCode(t, doJSON(t, h, "POST", "/api/run/chapters/next", nil), http.StatusOK)

	rec = doJSON(t, h, "PUT", "/api/run/chapters/capitulo_1", ChapterUpdateRequest{Content: "uno dos tres"})
	expectCode(t, rec, http.StatusOK)
	if ch := decode[types.GeneratedChapter](t, rec); ch.WordCount != 3 {
		t.Errorf("WordCount = %d, want 3", ch.WordCount)
	}
	expectCode(t, doJSON(t, h, "PUT", "/api/run/chapters/capitulo_7", ChapterUpdateRequest{Content: "x"}), http.StatusNotFound)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pipeline.ErrStageBusy, http.StatusLocked},
		{fmt.Errorf("x: %w", pipeline.ErrUnknownStage), http.StatusNotFound},
		{chapters.ErrUnknownChapter, http.StatusNotFound},
		{pipeline.ErrInvalidInput, http.StatusBadRequest},
		{pipeline.ErrEmptyInput, http.StatusBadRequest},
		{pipeline.ErrDependencyNotReady, http.StatusConflict},
		{pipeline.ErrRetryRequired, http.StatusConflict},
		{chapters.ErrNothingToGenerate, http.StatusConflict},
		{providers.ErrMalformedResponse, http.StatusBadGateway},
		{upload.ErrUploadExhausted, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	got := redact(map[string]any{
		"base_url": "https://svc",
		"api_key":  "k",
		"s3":       map[string]any{"secret_key": "s", "bucket": "b"},
	}).(map[string]any)
	if got["api_key"] != "***" || got["base_url"] != "https://svc" {
		t.Errorf("redact = %+v", got)
	}
	if s3 := got["s3"].(map[string]any); s3["secret_key"] != "***" || s3["bucket"] != "b" {
		t.Errorf("redact nested = %+v", s3)
	}
	if redact("plain") != "plain" {
		t.Error("redact changed a scalar")
	}
}

func TestAll_RoutesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, ep := range All(Config{}) {
		method, path, _ := ep.Route()
		key := method + " " + path
		if seen[key] {
			t.Errorf("duplicate route %s", key)
		}
		seen[key] = true
	}
	cmd := func() *api.Registry {
		reg := api.NewRegistry()
		for _, ep := range All(Config{}) {
			reg.Register(ep)
		}
		return reg
	}().BuildCommands(func() string { return "http://localhost" })
	if _, _, err := cmd.Find([]string{"run", "chapters", "next"}); err != nil {
		t.Errorf("run chapters next command missing: %v", err)
	}
}

// brokenWriter fails every body write, like a client that hung up.
type brokenWriter struct {
	header http.Header
	writes int
}

func (b *brokenWriter) Header() http.Header { return b.header }
func (b *brokenWriter) WriteHeader(int) {}
func (b *brokenWriter) Write(p []byte) (int, error) {
	b.writes++
	return 0, errors.New("connection reset")
}

func TestRunStage_StopsAfterWriteFailure(t *testing.T) {
	w := &brokenWriter{header: make(http.Header)}
	r := httptest.NewRequest("POST", "/api/run/mapping?stream=true", nil)

	var chunks int
	runStage(w, r, func(onChunk providers.ChunkFunc) (any, error) {
		for _, text := range []string{"a", "b", "c"} {
			onChunk(text)
			chunks++
		}
		return map[string]string{"status": "ok"}, nil
	})

	if chunks != 3 {
		t.Errorf("stage saw %d chunks, want 3", chunks)
	}
	if w.writes != 1 {
		t.Errorf("writes = %d, want 1", w.writes)
	}
}
