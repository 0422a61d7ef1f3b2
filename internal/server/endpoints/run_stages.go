package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/ingest"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

// maxMultipartMemory bounds the in-memory part of an ingest upload.
const maxMultipartMemory = 32 << 20

// IngestEndpoint handles POST /api/run/ingest.
type IngestEndpoint struct{ runGroup }

func (e *IngestEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/ingest", e.handler
}

func (e *IngestEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Ingest source documents
//	@Description	Upload the compendio and optional project brief and extract their text
//	@Tags			stages
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			compendio	formData	file	true	"Compendio document (PDF or text)"
//	@Param			brief		formData	file	false	"Project brief document"
//	@Success		200			{object}	RunResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Failure		502			{object}	ErrorResponse
//	@Router			/api/run/ingest [post]
func (e *IngestEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 2*ingest.MaxDocumentSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	compendio, err := readFormDocument(r, "compendio")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := pipeline.IngestRequest{Compendio: compendio.File}

	if len(r.MultipartForm.File["brief"]) > 0 {
		brief, err := readFormDocument(r, "brief")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Brief = &brief.File
	}

	if err := engine.Ingest(r.Context(), req); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(engine.Snapshot()))
}

// readFormDocument reads and checks one uploaded file.
func readFormDocument(r *http.Request, field string) (*ingest.Source, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("missing %s file", field)
		}
		return nil, fmt.Errorf("invalid %s file: %w", field, err)
	}
	defer file.Close()
	return ingest.FromReader(header.Filename, file)
}

func (e *IngestEndpoint) Command(getServerURL func() string) *cobra.Command {
	var brief string
	cmd := &cobra.Command{
		Use:   "ingest <compendio>",
		Short: "Upload source documents and extract their text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := map[string]string{"compendio": args[0]}
			if brief != "" {
				files["brief"] = brief
			}
			client := api.NewClient(getServerURL())
			var resp RunResponse
			if err := client.PostFiles(cmd.Context(), "/api/run/ingest", files, nil, &resp); err != nil {
				return err
			}
			printRun(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&brief, "brief", "", "Project brief document")
	return cmd
}

// MappingEndpoint handles POST /api/run/mapping.
type MappingEndpoint struct{ runGroup }

func (e *MappingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/mapping", e.handler
}

func (e *MappingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Run content mapping
//	@Description	Run the references, citations, tables and combine steps in order, skipping finished ones
//	@Tags			stages
//	@Produce		json
//	@Produce		x-ndjson
//	@Param			stream	query		bool	false	"Stream NDJSON chunk events"
//	@Success		200		{object}	RunResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/run/mapping [post]
func (e *MappingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	runStage(w, r, func(onChunk providers.ChunkFunc) (any, error) {
		if err := engine.Map(r.Context(), onChunk); err != nil {
			return nil, err
		}
		return newRunResponse(engine.Snapshot()), nil
	})
}

func (e *MappingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return stageCommand("mapping", "Map the compendio's references, citations and tables", "/api/run/mapping", getServerURL, nil)
}

// StructureEndpoint handles POST /api/run/structure.
type StructureEndpoint struct{ runGroup }

func (e *StructureEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/structure", e.handler
}

func (e *StructureEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate the book skeleton
//	@Tags			stages
//	@Accept			json
//	@Produce		json
//	@Produce		x-ndjson
//	@Param			request	body		pipeline.StructureRequest	true	"Structure parameters"
//	@Param			stream	query		bool						false	"Stream NDJSON chunk events"
//	@Success		200		{object}	types.Skeleton
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/run/structure [post]
func (e *StructureEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	var req pipeline.StructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	runStage(w, r, func(onChunk providers.ChunkFunc) (any, error) {
		if err := engine.Structure(r.Context(), req, onChunk); err != nil {
			return nil, err
		}
		return engine.Skeleton(), nil
	})
}

func (e *StructureEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req pipeline.StructureRequest
	cmd := stageCommand("structure", "Generate the chapter skeleton", "/api/run/structure", getServerURL, &req)
	cmd.Flags().StringVar(&req.Topics, "topics", "", "Topics the book must cover")
	cmd.Flags().IntVar(&req.ReferenceCount, "references", 0, "Number of references to use (1-50)")
	cmd.Flags().StringVar(&req.PageCount, "pages", "", "Target page range, e.g. 40-50")
	cmd.Flags().BoolVar(&req.AISubtopics, "ai-subtopics", false, "Let the service invent chapter subtopics")
	return cmd
}

// NextChapterEndpoint handles POST /api/run/chapters/next.
type NextChapterEndpoint struct{}

func (e *NextChapterEndpoint) Group() []string { return []string{"run", "chapters"} }

func (e *NextChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/chapters/next", e.handler
}

func (e *NextChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate the next chapter
//	@Description	Generate the chapter at the sequencer cursor using the previous chapter's context
//	@Tags			chapters
//	@Produce		json
//	@Produce		x-ndjson
//	@Param			stream	query		bool	false	"Stream NDJSON chunk events"
//	@Success		200		{object}	types.GeneratedChapter
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/run/chapters/next [post]
func (e *NextChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	runStage(w, r, func(onChunk providers.ChunkFunc) (any, error) {
		ch, err := engine.GenerateNextChapter(r.Context(), onChunk)
		if err != nil {
			return nil, err
		}
		return ch, nil
	})
}

func (e *NextChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return stageCommand("next", "Generate the next chapter", "/api/run/chapters/next", getServerURL, nil)
}

// AssembleEndpoint handles POST /api/run/assemble.
type AssembleEndpoint struct{ runGroup }

func (e *AssembleEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/assemble", e.handler
}

func (e *AssembleEndpoint) RequiresInit() bool { return true }

// AssembleResponse is the final ebook.
type AssembleResponse struct {
	Ebook    string            `json:"ebook"`
	Progress types.RunProgress `json:"progress"`
}

// handler godoc
//
//	@Summary		Assemble the final ebook
//	@Description	Combine every generated chapter with the skeleton into the final markdown
//	@Tags			stages
//	@Produce		json
//	@Produce		x-ndjson
//	@Param			stream	query		bool	false	"Stream NDJSON chunk events"
//	@Success		200		{object}	AssembleResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/run/assemble [post]
func (e *AssembleEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	runStage(w, r, func(onChunk providers.ChunkFunc) (any, error) {
		if err := engine.Assemble(r.Context(), onChunk); err != nil {
			return nil, err
		}
		return AssembleResponse{Ebook: engine.FinalEbook(), Progress: engine.Progress()}, nil
	})
}

func (e *AssembleEndpoint) Command(getServerURL func() string) *cobra.Command {
	return stageCommand("assemble", "Assemble the final ebook", "/api/run/assemble", getServerURL, nil)
}

// stageCommand builds a command that POSTs body to path. With --stream
// the chunk text is printed as it arrives.
func stageCommand(use, short, path string, getServerURL func() string, body any) *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if !stream {
				var resp any
				if err := client.Post(cmd.Context(), path, body, &resp); err != nil {
					return err
				}
				return api.Output(resp)
			}
			return client.PostStream(cmd.Context(), path+"?stream=true", body, printEvent)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "Print generated text as it arrives")
	return cmd
}

// printEvent writes chunk text to stdout and turns an error event into
// an error.
func printEvent(line []byte) error {
	var ev StreamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return fmt.Errorf("invalid stream event: %w", err)
	}
	switch ev.Type {
	case EventChunk:
		fmt.Fprint(os.Stdout, ev.Text)
	case EventError:
		fmt.Fprintln(os.Stdout)
		return errors.New(ev.Error)
	case EventDone:
		fmt.Fprintln(os.Stdout)
	}
	return nil
}
