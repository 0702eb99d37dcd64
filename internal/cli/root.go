package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salthouse/workset/internal/config"
	"github.com/salthouse/workset/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "workset",
	Short: "Tiered working-set cache for context objects",
	Long: "Workset keeps a bounded working set of context objects in memory,\n" +
		"spread over immediate, active, and background tiers that shrink\n" +
		"under system memory pressure. Single Go binary, SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(backupCmd)
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// openStore opens the configured database, falling back to the default
// path when the config names none.
func openStore(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(path)
}
