package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/api"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/config"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/home"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var (
	configForce  bool
	configPrefix string
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		var entries []config.Entry
		for _, key := range config.KeysWithPrefix(configPrefix) {
			e := *config.GetDefault(key)
			value, err := cm.Value(e.Key)
			if err != nil {
				value = e.Value
			}
			if isSecret(e.Key) && value != "" {
				value = "***"
			}
			e.Value = value
			entries = append(entries, e)
		}
		if used := cm.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "# config file: %s\n", used)
		}
		if missing := cm.Get().MissingOperations(); len(missing) > 0 {
			fmt.Fprintf(os.Stderr, "# operations without an id: %s\n", strings.Join(missing, ", "))
		}
		return api.Output(entries)
	},
}

// isSecret reports whether key holds a credential.
func isSecret(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "access_key") || strings.HasSuffix(key, "secret_key")
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configShowCmd.Flags().StringVar(&configPrefix, "prefix", "", "Only show keys under this prefix (e.g. 'operations.')")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
