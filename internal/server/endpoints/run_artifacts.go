package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/chapters"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/export"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/svcctx"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

// CompendioResponse holds the extracted source text.
type CompendioResponse struct {
	Compendio    string `json:"compendio"`
	ProjectBrief string `json:"project_brief,omitempty"`
}

// CompendioEndpoint handles GET /api/run/compendio.
type CompendioEndpoint struct{ runGroup }

func (e *CompendioEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run/compendio", e.handler
}

func (e *CompendioEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get extracted text
//	@Tags			artifacts
//	@Produce		json
//	@Success		200	{object}	CompendioResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/run/compendio [get]
func (e *CompendioEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	resp := CompendioResponse{Compendio: engine.Compendio(), ProjectBrief: engine.ProjectBrief()}
	if resp.Compendio == "" {
		writeError(w, http.StatusNotFound, "compendio has not been ingested")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *CompendioEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "compendio",
		Short: "Print the extracted compendio text",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CompendioResponse
			if err := client.Get(cmd.Context(), "/api/run/compendio", &resp); err != nil {
				return err
			}
			fmt.Println(resp.Compendio)
			return nil
		},
	}
}

// MappingArtifactEndpoint handles GET /api/run/mappings/{kind}.
type MappingArtifactEndpoint struct{ runGroup }

func (e *MappingArtifactEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run/mappings/{kind}", e.handler
}

func (e *MappingArtifactEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a mapping artifact
//	@Description	Returns the references, citations, tables or combined mapping as produced by the service
//	@Tags			artifacts
//	@Produce		json
//	@Param			kind	path		string	true	"references, citations, tables or combined"
//	@Success		200		{object}	object
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/run/mappings/{kind} [get]
func (e *MappingArtifactEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	kind := types.MappingKind(r.PathValue("kind"))
	m, ok := engine.Mapping(kind)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("mapping %q not available", kind))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(m)
}

func (e *MappingArtifactEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:       "mapping <kind>",
		Short:     "Print one mapping artifact",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"references", "citations", "tables", "combined"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp any
			if err := client.Get(cmd.Context(), "/api/run/mappings/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetSkeletonEndpoint handles GET /api/run/skeleton.
type GetSkeletonEndpoint struct{ runGroup }

func (e *GetSkeletonEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run/skeleton", e.handler
}

func (e *GetSkeletonEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get the book skeleton
//	@Tags			artifacts
//	@Produce		json
//	@Success		200	{object}	types.Skeleton
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/run/skeleton [get]
func (e *GetSkeletonEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	sk := engine.Skeleton()
	if sk.IsZero() {
		writeError(w, http.StatusNotFound, "skeleton has not been generated")
		return
	}
	writeJSON(w, http.StatusOK, sk)
}

func (e *GetSkeletonEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "skeleton",
		Short: "Show the chapter skeleton",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var sk types.Skeleton
			if err := client.Get(cmd.Context(), "/api/run/skeleton", &sk); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSUBTOPICS")
			for _, ch := range sk.Chapters {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", ch.ID, ch.Title, len(ch.Subtopics))
			}
			tw.Flush()
			if sk.NarrativeArc != "" {
				fmt.Printf("\nNarrative arc: %s\n", sk.NarrativeArc)
			}
			return nil
		},
	}
}

// SkeletonUpdateRequest replaces the chapter list of the skeleton.
type SkeletonUpdateRequest struct {
	Chapters     []chapters.ChapterEdit `json:"chapters"`
	NarrativeArc *string                `json:"narrative_arc,omitempty"`
}

// UpdateSkeletonEndpoint handles PUT /api/run/skeleton.
type UpdateSkeletonEndpoint struct{ runGroup }

func (e *UpdateSkeletonEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/run/skeleton", e.handler
}

func (e *UpdateSkeletonEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Edit the book skeleton
//	@Description	Replace the chapter list. Generated chapters and the final ebook are discarded.
//	@Tags			artifacts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SkeletonUpdateRequest	true	"New chapter list"
//	@Success		200		{object}	types.Skeleton
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/api/run/skeleton [put]
func (e *UpdateSkeletonEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	var req SkeletonUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sk, err := engine.UpdateSkeleton(req.Chapters, req.NarrativeArc)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sk)
}

func (e *UpdateSkeletonEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "edit-skeleton <file.json>",
		Short: "Replace the skeleton's chapters from a JSON file",
		Long: `Replace the skeleton's chapter list. The file holds
{"chapters": [{"title": "...", "subtopics": ["..."]}], "narrative_arc": "..."}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var req SkeletonUpdateRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("invalid skeleton file: %w", err)
			}
			client := api.NewClient(getServerURL())
			var sk types.Skeleton
			if err := client.Put(cmd.Context(), "/api/run/skeleton", req, &sk); err != nil {
				return err
			}
			return api.Output(sk)
		},
	}
}

// chaptersGroup nests chapter commands under "api run chapters".
type chaptersGroup struct{}

func (chaptersGroup) Group() []string { return []string{"run", "chapters"} }

// ChapterList is the generated chapters with progress.
type ChapterList struct {
	Chapters []types.GeneratedChapter `json:"chapters"`
	Progress types.RunProgress        `json:"progress"`
}

// ListChaptersEndpoint handles GET /api/run/chapters.
type ListChaptersEndpoint struct{ chaptersGroup }

func (e *ListChaptersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run/chapters", e.handler
}

func (e *ListChaptersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List generated chapters
//	@Tags			chapters
//	@Produce		json
//	@Success		200	{object}	ChapterList
//	@Router			/api/run/chapters [get]
func (e *ListChaptersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	chs := engine.Chapters()
	if chs == nil {
		chs = []types.GeneratedChapter{}
	}
	writeJSON(w, http.StatusOK, ChapterList{Chapters: chs, Progress: engine.Progress()})
}

func (e *ListChaptersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List generated chapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ChapterList
			if err := client.Get(cmd.Context(), "/api/run/chapters", &resp); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tWORDS")
			for _, ch := range resp.Chapters {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", ch.ID, ch.Title, ch.WordCount)
			}
			tw.Flush()
			fmt.Printf("\n%d/%d chapters generated\n", resp.Progress.Completed, resp.Progress.Total)
			return nil
		},
	}
}

// GetChapterEndpoint handles GET /api/run/chapters/{chapter_id}.
type GetChapterEndpoint struct{ chaptersGroup }

func (e *GetChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run/chapters/{chapter_id}", e.handler
}

func (e *GetChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a generated chapter
//	@Tags			chapters
//	@Produce		json
//	@Param			chapter_id	path		string	true	"Chapter id, e.g. capitulo_1"
//	@Success		200			{object}	types.GeneratedChapter
//	@Failure		404			{object}	ErrorResponse
//	@Router			/api/run/chapters/{chapter_id} [get]
func (e *GetChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	ch, err := engine.Chapter(r.PathValue("chapter_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (e *GetChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <chapter-id>",
		Short: "Print a generated chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var ch types.GeneratedChapter
			if err := client.Get(cmd.Context(), "/api/run/chapters/"+args[0], &ch); err != nil {
				return err
			}
			fmt.Printf("# %s\n\n%s\n", ch.Title, ch.Content)
			return nil
		},
	}
}

// ChapterUpdateRequest replaces a chapter's content.
type ChapterUpdateRequest struct {
	Content     string  `json:"content"`
	NextContext *string `json:"next_context,omitempty"`
}

// UpdateChapterEndpoint handles PUT /api/run/chapters/{chapter_id}.
type UpdateChapterEndpoint struct{ chaptersGroup }

func (e *UpdateChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/run/chapters/{chapter_id}", e.handler
}

func (e *UpdateChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Edit a generated chapter
//	@Description	Replace a chapter's content. Editing the latest chapter can also replace the context handed to the next one.
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			chapter_id	path		string					true	"Chapter id"
//	@Param			request		body		ChapterUpdateRequest	true	"New content"
//	@Success		200			{object}	types.GeneratedChapter
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/api/run/chapters/{chapter_id} [put]
func (e *UpdateChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	var req ChapterUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ch, err := engine.EditChapter(r.PathValue("chapter_id"), req.Content, req.NextContext)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (e *UpdateChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <chapter-id> <file.md>",
		Short: "Replace a chapter's content from a markdown file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			client := api.NewClient(getServerURL())
			var ch types.GeneratedChapter
			if err := client.Put(cmd.Context(), "/api/run/chapters/"+args[0], ChapterUpdateRequest{Content: string(data)}, &ch); err != nil {
				return err
			}
			fmt.Printf("Updated %s (%d words)\n", ch.ID, ch.WordCount)
			return nil
		},
	}
}

// EbookEndpoint handles GET /api/run/ebook.
type EbookEndpoint struct{ runGroup }

func (e *EbookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run/ebook", e.handler
}

func (e *EbookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download the final ebook
//	@Tags			artifacts
//	@Produce		text/markdown
//	@Produce		text/html
//	@Produce		application/epub+zip
//	@Param			format	query		string	false	"markdown (default), html or epub"
//	@Success		200		{string}	string
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/run/ebook [get]
func (e *EbookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	ebook := engine.FinalEbook()
	if ebook == "" {
		writeError(w, http.StatusNotFound, "ebook has not been assembled")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.EbookMarkdown+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(ebook))
	case "html":
		doc, err := export.HTMLDocument(export.Title(engine.Snapshot()), ebook)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	case "epub":
		book, err := export.EPUB(engine.Snapshot())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/epub+zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.EbookEPUB+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(book)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func (e *EbookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "ebook",
		Short: "Download the assembled ebook",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			data, err := client.GetRaw(cmd.Context(), "/api/run/ebook?format="+format)
			if err != nil {
				return err
			}
			if out == "" {
				if format == "epub" {
					return fmt.Errorf("epub output needs --file")
				}
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown, html or epub")
	cmd.Flags().StringVarP(&out, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}

// ExportResponse lists the files written by an export.
type ExportResponse struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// ExportEndpoint handles POST /api/run/export.
type ExportEndpoint struct{ runGroup }

func (e *ExportEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/export", e.handler
}

func (e *ExportEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Export run artifacts
//	@Description	Write every artifact of the current run under the home exports directory
//	@Tags			artifacts
//	@Produce		json
//	@Success		200	{object}	ExportResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/run/export [post]
func (e *ExportEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	h := svcctx.HomeFrom(r.Context())
	if h == nil {
		writeError(w, http.StatusServiceUnavailable, "home directory not configured")
		return
	}
	run := engine.Snapshot()
	dir := h.RunExportDir(run.ID)
	files, err := export.Write(dir, run)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("export failed", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Dir: dir, Files: files})
}

func (e *ExportEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the run's artifacts to the server's exports directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ExportResponse
			if err := client.Post(cmd.Context(), "/api/run/export", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Exported %d files to %s\n", len(resp.Files), resp.Dir)
			return nil
		},
	}
}
