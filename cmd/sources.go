package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/tui"
)

var flagSourcesLimit int

var sourcesCmd = &cobra.Command{
	Use:   "sources [TOPIC]",
	Short: "List saved research sources, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if a.db == nil {
			return errors.New("research sources need the SQLite cache")
		}

		var topic string
		if len(args) == 1 {
			topic = args[0]
		}
		srcs, err := a.db.ListResearchSources(cmd.Context(), topic, flagSourcesLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), srcs)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSources(srcs, termWidth))
		return nil
	},
}

func init() {
	sourcesCmd.Flags().IntVarP(&flagSourcesLimit, "limit", "n", 20, "maximum sources to list")
	addJSONFlag(sourcesCmd)
	rootCmd.AddCommand(sourcesCmd)
}
