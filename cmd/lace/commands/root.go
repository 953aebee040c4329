// Package commands provides the CLI commands for the Lace operator tool.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/laceai/lace-core/internal/config"
	"github.com/laceai/lace-core/internal/logging"
	"github.com/laceai/lace-core/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	dbPath    string
	printLogs bool
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "lace",
	Short: "Lace conversation core — operator CLI",
	Long: `lace is the operator tool for a Lace conversation core deployment:
it migrates the event store, inspects thread state, and lists or
resolves pending tool approvals. It does not run turns or serve the
product's own client surface — that's the Core's job as a library.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Output: os.Stderr,
			Pretty: printLogs,
		}
		if !printLogs {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)
	},
}

func init() {
	defaultDB := config.GetPaths().DBPath()

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Path to the event store's sqlite database")
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("lace %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(approvalsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openStore opens the event store at the configured --db path, creating
// its parent directory if needed.
func openStore() (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	return store.Open(dbPath)
}
