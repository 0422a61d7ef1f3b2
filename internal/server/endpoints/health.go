package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/chapters"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/svcctx"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
	"github.com/Pablogarciag02/ChapterInator2.0/version"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Health check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: version.GitRelease}
	if engine := svcctx.EngineFrom(r.Context()); engine != nil {
		resp.RunID = engine.RunID()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:  %s\n", resp.Status)
			fmt.Printf("Version: %s\n", resp.Version)
			if resp.RunID != "" {
				fmt.Printf("Run:     %s\n", resp.RunID)
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorStatus maps pipeline errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrStageBusy):
		return http.StatusLocked
	case errors.Is(err, pipeline.ErrUnknownStage), errors.Is(err, chapters.ErrUnknownChapter):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrEmptyInput), errors.Is(err, pipeline.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrDependencyNotReady), errors.Is(err, pipeline.ErrRetryRequired),
		errors.Is(err, pipeline.ErrAlreadyCompleted), errors.Is(err, chapters.ErrNothingToGenerate):
		return http.StatusConflict
	case errors.Is(err, providers.ErrTransport), errors.Is(err, providers.ErrMalformedResponse),
		errors.Is(err, providers.ErrReadTimeout), errors.Is(err, upload.ErrUploadExhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError writes err with the status errorStatus picks.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}

// engineOrFail returns the engine from the request context, writing a 503
// when it is missing.
func engineOrFail(w http.ResponseWriter, r *http.Request) *pipeline.Engine {
	engine := svcctx.EngineFrom(r.Context())
	if engine == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline engine not initialized")
	}
	return engine
}
