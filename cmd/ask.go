package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/kb"
	"github.com/ScientiaCapital/claude-education-platform/internal/tui"
)

var flagTopK int

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a question from the local knowledge base",
	Long: `Retrieve the passages most relevant to QUESTION from material added with
--ingest and, when an AI provider is configured, generate a cited answer.
Without a provider the matching passages are printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		k, err := a.knowledgeBase(ctx)
		if err != nil {
			return err
		}
		if k.Len() == 0 {
			return errors.New("the knowledge base is empty; add material with scrape, search or enrich --ingest")
		}

		ans, err := k.Ask(ctx, args[0], flagTopK)
		if errors.Is(err, kb.ErrNoGenerator) {
			hits := k.Search(args[0], flagTopK)
			if flagJSON {
				return writeJSON(cmd.OutOrStdout(), hits)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderHits(hits, termWidth))
			return nil
		}
		if err != nil {
			return err
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), ans)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderAnswer(ans, termWidth))
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "passages to retrieve (default from config)")
	addJSONFlag(askCmd)
	rootCmd.AddCommand(askCmd)
}
