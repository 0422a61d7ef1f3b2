package main

import (
	"github.com/spf13/cobra"

	_ "github.com/Pablogarciag02/ChapterInator2.0/docs"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Chapterinator server",
	Long: `Start the Chapterinator HTTP server.

The server holds one pipeline run in memory and exposes each stage as an
endpoint. Config file changes are picked up without a restart.

The server provides:
  - /health        - Basic server health check
  - /ready         - Readiness check (every operation has an id)
  - /api/run/...   - Pipeline stages and artifacts
  - /metrics       - Prometheus metrics
  - /swagger       - API documentation

Examples:
  chapterinator serve                    # Start on default port 8080
  chapterinator serve --port 3000        # Start on custom port
  chapterinator serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger()
		if err != nil {
			return err
		}
		h, cm, err := loadConfig()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		cm.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cm,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
