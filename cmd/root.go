package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig      string
	flagVerbose     bool
	flagMetricsAddr string
	flagJSON        bool
)

var rootCmd = &cobra.Command{
	Use:   "edututor",
	Short: "Find, scrape and organise programming material for young learners",
	Long: `edututor searches the web for programming tutorials, scrapes them into
markdown with structured metadata and builds culturally adapted learning
paths for students aged 10 to 18.

Results are cached in memory, on disk and in SQLite, and every external
service is rate limited and retried.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		if flagMetricsAddr != "" {
			metrics.Serve(flagMetricsAddr)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g., :9090)")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. An interrupt cancels the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// addJSONFlag registers --json on commands that can print machine output.
func addJSONFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagJSON, "json", false, "print the result as JSON")
}

func versionLine() string {
	return fmt.Sprintf("edututor %s (commit: %s, built: %s)", version, commit, date)
}
