package server

import (
	"encoding/json"
	"net/http"
)

// registerRoutes sets up routes that are not part of the API registry.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ready", s.handleReady)
}

// ReadyResponse reports whether the server can run every stage.
type ReadyResponse struct {
	Status            string   `json:"status"`
	MissingOperations []string `json:"missing_operations,omitempty"`
}

// handleReady returns OK only when every remote operation has an id.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ok"}
	if s.configMgr != nil {
		resp.MissingOperations = s.configMgr.Get().MissingOperations()
	}
	if len(resp.MissingOperations) > 0 {
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
