package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require full server initialization.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// Endpoints implementing Grouped nest under shared parent commands.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running Chapterinator server via HTTP.

These commands require a running server (chapterinator serve).
Use --server to specify a custom server URL.

Examples:
  chapterinator api health                  # Check server health
  chapterinator api run status              # Show stage statuses
  chapterinator api run ingest compendio.pdf
  chapterinator api run chapters next       # Generate the next chapter`,
	}

	groups := map[string]*cobra.Command{}
	for _, ep := range r.endpoints {
		cmd := ep.Command(getServerURL)
		if cmd == nil {
			continue
		}
		parent := apiCmd
		if g, ok := ep.(Grouped); ok {
			for _, name := range g.Group() {
				key := parent.Name() + "/" + name
				sub, ok := groups[key]
				if !ok {
					sub = &cobra.Command{Use: name, Short: name + " commands"}
					groups[key] = sub
					parent.AddCommand(sub)
				}
				parent = sub
			}
		}
		parent.AddCommand(cmd)
	}

	return apiCmd
}

// Grouped is implemented by endpoints whose command nests under
// intermediate commands, e.g. []string{"run", "chapters"}.
type Grouped interface {
	Group() []string
}
