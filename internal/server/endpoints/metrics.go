package endpoints

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/metrics"
)

// MetricsEndpoint serves Prometheus metrics at GET /metrics.
type MetricsEndpoint struct {
	Registry *prom.Registry
}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Prometheus metrics
//	@Tags			health
//	@Produce		plain
//	@Success		200	{string}	string
//	@Router			/metrics [get]
func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if e.Registry == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	metrics.HTTPHandler(e.Registry).ServeHTTP(w, r)
}

func (e *MetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return nil
}
