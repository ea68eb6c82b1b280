package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/enrich"
	"github.com/ScientiaCapital/claude-education-platform/internal/tui"
)

var (
	flagCompleted int
	flagScore     float64
)

var suggestCmd = &cobra.Command{
	Use:   "suggest LESSON",
	Short: "Suggest next steps and cultural projects after a lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := enrich.Progress{CompletedLessons: flagCompleted, AverageScore: flagScore}
		ss := a.enricher.Suggestions(cmd.Context(), args[0], p)
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), ss)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSuggestions(args[0], string(enrich.StudentLevel(p)), ss, termWidth))
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVar(&flagCompleted, "completed", 0, "lessons the student has completed")
	suggestCmd.Flags().Float64Var(&flagScore, "score", 0, "the student's average score (0-100)")
	addJSONFlag(suggestCmd)
	rootCmd.AddCommand(suggestCmd)
}
