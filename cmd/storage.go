package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/config"
	"github.com/ScientiaCapital/claude-education-platform/internal/tui"
)

var (
	flagCleanupOlderThan string
	flagInvalidateType   string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entries per tier and type",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		summary := a.scraper.Cache().Summary(cmd.Context())
		if flagJSON {
			return writeJSON(out, summary)
		}
		fmt.Fprint(out, tui.RenderCacheSummary(summary))
		dbPath := config.CachePath()
		if fi, err := os.Stat(dbPath); err == nil {
			fmt.Fprintf(out, "\nDatabase: %s (%s)\n", dbPath, formatBytes(fi.Size()))
		}
		fmt.Fprintf(out, "Files: %s\n", a.cfg.FileCacheDir())
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old and expired cache entries",
	Long: `Delete cache entries older than the retention period from every tier,
plus durable entries past their expiry.

Uses the retention value from config (default: 7d) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		retention := a.cfg.RetentionDuration()
		if flagCleanupOlderThan != "" {
			d, err := config.ParseDuration(flagCleanupOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		removed := a.scraper.Cache().CleanupExpired(cmd.Context(), retention)
		if removed == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clean up.")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entr%s older than %s.\n", removed, plural(removed, "y", "ies"), formatDuration(retention))
		}
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate URL",
	Short: "Drop the cached scrape of URL so the next scrape fetches it again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, err := classify.ParseContentType(flagInvalidateType)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.scraper.Cache().Invalidate(cmd.Context(), args[0], string(ct))
		fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %s (%s).\n", args[0], ct)
		return nil
	},
}

func init() {
	cacheCleanupCmd.Flags().StringVar(&flagCleanupOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")
	cacheInvalidateCmd.Flags().StringVarP(&flagInvalidateType, "type", "t", "tutorial", "content type the page was scraped as")
	addJSONFlag(cacheStatsCmd)

	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanupCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

func formatDuration(d time.Duration) string {
	h := d.Hours()
	if days := int(h / 24); days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	if h >= 1 {
		return fmt.Sprintf("%dh", int(h))
	}
	return d.String()
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
