package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/config"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/svcctx"
)

// settingsGroup nests settings commands under "api settings".
type settingsGroup struct{}

func (settingsGroup) Group() []string { return []string{"settings"} }

// OperationStatus reports whether a remote operation is configured.
type OperationStatus struct {
	Name       string `json:"name"`
	ID         string `json:"id,omitempty"`
	Configured bool   `json:"configured"`
}

// OperationsResponse lists the configured remote operations.
type OperationsResponse struct {
	ServiceURL string            `json:"service_url"`
	Operations []OperationStatus `json:"operations"`
	Missing    []string          `json:"missing,omitempty"`
}

// ListOperationsEndpoint handles GET /api/settings/operations.
type ListOperationsEndpoint struct{ settingsGroup }

func (e *ListOperationsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/operations", e.handler
}

func (e *ListOperationsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List remote operations
//	@Description	Show which generation service operations have ids configured
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	OperationsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/operations [get]
func (e *ListOperationsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigManagerFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusInternalServerError, "config manager not available")
		return
	}
	cfg := cm.Get()
	resp := OperationsResponse{ServiceURL: cfg.Service.BaseURL, Missing: cfg.MissingOperations()}
	for _, name := range config.OperationNames {
		op, ok := cfg.Operation(name)
		resp.Operations = append(resp.Operations, OperationStatus{Name: name, ID: op.ID, Configured: ok})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListOperationsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List configured remote operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp OperationsResponse
			if err := client.Get(cmd.Context(), "/api/settings/operations", &resp); err != nil {
				return err
			}
			fmt.Printf("Service: %s\n\n", resp.ServiceURL)
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OPERATION\tID")
			for _, op := range resp.Operations {
				id := op.ID
				if !op.Configured {
					id = "(not configured)"
				}
				fmt.Fprintf(tw, "%s\t%s\n", op.Name, id)
			}
			return tw.Flush()
		},
	}
}

// SettingResponse is one effective config value.
type SettingResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// GetSettingEndpoint handles GET /api/settings/{key}.
type GetSettingEndpoint struct{ settingsGroup }

func (e *GetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/{key}", e.handler
}

func (e *GetSettingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a setting
//	@Description	Get the effective value of a config key, e.g. defaults.page_count
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Dotted config key"
//	@Success		200	{object}	SettingResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/settings/{key} [get]
func (e *GetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigManagerFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusInternalServerError, "config manager not available")
		return
	}
	key := r.PathValue("key")
	if isSecretKey(key) {
		writeError(w, http.StatusForbidden, "secret values are not served")
		return
	}
	value, err := cm.Value(key)
	switch {
	case errors.Is(err, config.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: redact(value)})
	}
}

// isSecretKey reports whether key holds a credential.
func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "api_key") || strings.Contains(k, "secret") || strings.Contains(k, "access_key")
}

// redact masks credentials nested inside a section value.
func redact(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		if isSecretKey(k) {
			out[k] = "***"
			continue
		}
		out[k] = redact(val)
	}
	return out
}

func (e *GetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show the effective value of a config key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			if err := client.Get(cmd.Context(), "/api/settings/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
