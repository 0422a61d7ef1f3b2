package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/config"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/home"
	"github.com/Pablogarciag02/ChapterInator2.0/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "chapterinator",
	Short: "Ebook generation pipeline on a remote generation service",
	Long: `Chapterinator turns a source compendio into a finished ebook by driving
a chain of released apps on a remote generation service.

The pipeline includes:
  - Ingestion: upload the compendio and project brief, extract their text
  - Mapping: references, citations, tables and a combined content map
  - Structure: a chapter skeleton built from topics and page targets
  - Chapters: one chapter at a time, each fed the previous chapter's context
  - Assembly: the final ebook in markdown`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.chapterinator/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "chapterinator home directory (default: ~/.chapterinator)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the text logger used by local commands.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// loadConfig resolves the home directory, loads its .env file and the
// config file.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	if err := config.LoadEnvFile(".env", h.EnvPath()); err != nil {
		return nil, nil, err
	}
	cm, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return h, cm, nil
}
