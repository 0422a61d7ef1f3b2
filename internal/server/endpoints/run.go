package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

// runGroup nests run commands under "api run".
type runGroup struct{}

func (runGroup) Group() []string { return []string{"run"} }

// StageView is the status of one stage.
type StageView struct {
	ID     pipeline.StageID `json:"id"`
	Status pipeline.Status  `json:"status"`
	Error  string           `json:"error,omitempty"`
	Steps  []StageView      `json:"steps,omitempty"`
}

// RunResponse summarizes the current run.
type RunResponse struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	CurrentStage string            `json:"current_stage,omitempty"`
	Stages       []StageView       `json:"stages"`
	Progress     types.RunProgress `json:"progress"`
	CompendioURL string            `json:"compendio_url,omitempty"`
	BriefURL     string            `json:"brief_url,omitempty"`
	ChapterIDs   []string          `json:"chapter_ids,omitempty"`
}

func newRunResponse(run *pipeline.Run) RunResponse {
	resp := RunResponse{
		ID:         run.ID,
		CreatedAt:  run.CreatedAt,
		Progress:   run.Progress(),
		ChapterIDs: run.Chapters.Sequence,
	}
	if i := run.CurrentStageIndex(); i < len(pipeline.Stages) {
		resp.CurrentStage = string(pipeline.Stages[i])
	}
	if run.CompendioDoc != nil {
		resp.CompendioURL = run.CompendioDoc.RemoteURL
	}
	if run.BriefDoc != nil {
		resp.BriefURL = run.BriefDoc.RemoteURL
	}

	view := func(id pipeline.StageID) StageView {
		return StageView{ID: id, Status: run.StatusOf(id), Error: run.Errors[id]}
	}
	for _, id := range pipeline.Stages {
		sv := view(id)
		if id == pipeline.StageMapping {
			for _, step := range pipeline.MappingSteps {
				sv.Steps = append(sv.Steps, view(step))
			}
		}
		resp.Stages = append(resp.Stages, sv)
	}
	return resp
}

// printRun renders a run summary as a table.
func printRun(resp RunResponse) {
	fmt.Printf("Run %s (created %s)\n", resp.ID, resp.CreatedAt.Format(time.RFC3339))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tERROR")
	for _, s := range resp.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Status, s.Error)
		for _, step := range s.Steps {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", step.ID, step.Status, step.Error)
		}
	}
	tw.Flush()
	fmt.Printf("Chapters: %d/%d (%.0f%%)\n", resp.Progress.Completed, resp.Progress.Total, resp.Progress.Fraction()*100)
}

// GetRunEndpoint handles GET /api/run.
type GetRunEndpoint struct{ runGroup }

func (e *GetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run", e.handler
}

func (e *GetRunEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get run status
//	@Description	Stage statuses, chapter progress and uploaded document URLs of the current run
//	@Tags			run
//	@Produce		json
//	@Success		200	{object}	RunResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/run [get]
func (e *GetRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(engine.Snapshot()))
}

func (e *GetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current run's stage statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RunResponse
			if err := client.Get(cmd.Context(), "/api/run", &resp); err != nil {
				return err
			}
			if cmd.Flags().Changed("output") || cmd.Root().PersistentFlags().Changed("output") {
				return api.Output(resp)
			}
			printRun(resp)
			return nil
		},
	}
}

// StageStatusResponse is the status of one stage.
type StageStatusResponse struct {
	Stage  pipeline.StageID `json:"stage"`
	Status pipeline.Status  `json:"status"`
}

// StageStatusEndpoint handles GET /api/run/stages/{stage}.
type StageStatusEndpoint struct{ runGroup }

func (e *StageStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/run/stages/{stage}", e.handler
}

func (e *StageStatusEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get stage status
//	@Tags			run
//	@Produce		json
//	@Param			stage	path		string	true	"Stage or sub-step id, e.g. mapping.citations"
//	@Success		200		{object}	StageStatusResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/run/stages/{stage} [get]
func (e *StageStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	id := pipeline.StageID(r.PathValue("stage"))
	status, err := engine.StageStatus(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StageStatusResponse{Stage: id, Status: status})
}

func (e *StageStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <id>",
		Short: "Show one stage's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StageStatusResponse
			if err := client.Get(cmd.Context(), "/api/run/stages/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RetryStageEndpoint handles POST /api/run/stages/{stage}/retry.
type RetryStageEndpoint struct{ runGroup }

func (e *RetryStageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/stages/{stage}/retry", e.handler
}

func (e *RetryStageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Retry a stage
//	@Description	Move a stage back to pending and invalidate everything downstream of it
//	@Tags			run
//	@Produce		json
//	@Param			stage	path		string	true	"Stage or sub-step id"
//	@Success		200		{object}	RunResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		423		{object}	ErrorResponse
//	@Router			/api/run/stages/{stage}/retry [post]
func (e *RetryStageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	if err := engine.Retry(pipeline.StageID(r.PathValue("stage"))); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(engine.Snapshot()))
}

func (e *RetryStageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <stage>",
		Short: "Reset a failed stage so it can run again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RunResponse
			if err := client.Post(cmd.Context(), "/api/run/stages/"+args[0]+"/retry", nil, &resp); err != nil {
				return err
			}
			printRun(resp)
			return nil
		},
	}
}

// ResetRunEndpoint handles POST /api/run/reset.
type ResetRunEndpoint struct{ runGroup }

func (e *ResetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/run/reset", e.handler
}

func (e *ResetRunEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Reset the run
//	@Description	Discard every artifact and start a new run
//	@Tags			run
//	@Produce		json
//	@Success		200	{object}	RunResponse
//	@Failure		423	{object}	ErrorResponse
//	@Router			/api/run/reset [post]
func (e *ResetRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	engine := engineOrFail(w, r)
	if engine == nil {
		return
	}
	if err := engine.Reset(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(engine.Snapshot()))
}

func (e *ResetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the current run and start over",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RunResponse
			if err := client.Post(cmd.Context(), "/api/run/reset", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("New run: %s\n", resp.ID)
			return nil
		},
	}
}
