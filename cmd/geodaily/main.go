package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geodaily",
	Short: "geodaily - daily GeoGuessr challenge bot for Slack",
	Long: `geodaily creates a GeoGuessr challenge once (or more) per day and posts
it to a Slack channel, carrying the previous challenge's results along.

Designed for cron / CI schedules: every invocation is a fresh process,
run state lives in a file, a GitHub Gist, or SQLite between runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd executes one daily run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create today's challenge and post it to Slack",
	Long: `Runs the full daily pipeline:
  1. Load the last run's state (id, date, sequence number)
  2. Fetch results of the previous run (same-day runs only)
  3. Create a new challenge (API first, browser automation on failure)
  4. Post the announcement to Slack
  5. Persist the new run state

Exit code is 0 when the message was posted, 1 otherwise.`,
	RunE: runDaily,
}

// validateCmd checks credentials
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the GeoGuessr cookie and Slack token",
	RunE:  runValidate,
}

// resultsCmd posts or prints a results-only message
var resultsCmd = &cobra.Command{
	Use:   "results [challenge-id]",
	Short: "Fetch a challenge's results and post them (or print with --dry-run)",
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

// stateCmd prints the persisted run state
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the persisted run state",
	RunE:  runShowState,
}

var resultsDryRun bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "geodaily.yaml", "path to config file")

	resultsCmd.Flags().BoolVar(&resultsDryRun, "dry-run", false, "print the message instead of posting")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(stateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
