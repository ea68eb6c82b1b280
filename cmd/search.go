package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/browser"
	"github.com/ScientiaCapital/claude-education-platform/internal/kb"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
	"github.com/ScientiaCapital/claude-education-platform/internal/tui"
)

var (
	flagSearchMax int
	flagOpen      int
)

var searchCmd = &cobra.Command{
	Use:   "search TOPIC",
	Short: "Search for tutorials on a programming topic",
	Long: `Query every configured search provider (Tavily, Exa and RSS feeds),
score the results for educational value and list the most relevant ones.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		limit := flagSearchMax
		if limit <= 0 {
			limit = a.cfg.Search.MaxResults
		}
		items := a.scraper.Search(ctx, args[0], limit)

		if flagIngest {
			k, err := a.knowledgeBase(ctx)
			if err != nil {
				return err
			}
			n, err := k.Add(ctx, kb.FromSearch(items))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Added %d passage(s) to the knowledge base.\n", n)
		}

		if flagOpen > 0 {
			return openResult(items, flagOpen)
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), items)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderItems(items, termWidth))
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchMax, "max", "n", 0, "maximum results (default from config)")
	searchCmd.Flags().IntVar(&flagOpen, "open", 0, "open the Nth result in the browser")
	searchCmd.Flags().BoolVar(&flagIngest, "ingest", false, "add the results to the knowledge base")
	addJSONFlag(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

// openResult opens the 1-based nth item.
func openResult(items []scraper.Item, n int) error {
	if n < 1 || n > len(items) {
		return fmt.Errorf("--open %d: only %d result(s)", n, len(items))
	}
	return browser.Open(items[n-1].URL)
}
