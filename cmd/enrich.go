package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/enrich"
	"github.com/ScientiaCapital/claude-education-platform/internal/kb"
	"github.com/ScientiaCapital/claude-education-platform/internal/tui"
)

var (
	flagAgeGroup string
	flagLanguage string
	flagPlain    bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich TOPIC...",
	Short: "Build culturally adapted learning material for one or more topics",
	Long: `For each topic, search for tutorials, examples and exercises suited to
the age group, add cultural adaptations and a difficulty progression, and
estimate the learning time. Topics are enriched concurrently; each result
is saved to the research source history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		run := func(ctx context.Context, progress func(enrich.Topic)) []enrich.Topic {
			return a.enricher.EnrichTopics(ctx, args, flagAgeGroup, flagLanguage, progress)
		}

		var topics []enrich.Topic
		if flagPlain || flagJSON {
			topics = run(ctx, nil)
		} else {
			topics, err = tui.RunEnrichment(ctx, args, run)
			if err != nil {
				return err
			}
		}

		if flagIngest {
			k, err := a.knowledgeBase(ctx)
			if err != nil {
				return err
			}
			var added int
			for _, t := range topics {
				n, err := k.Add(ctx, kb.FromEnrichment(t))
				if err != nil {
					return err
				}
				added += n
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Added %d passage(s) to the knowledge base.\n", added)
		}

		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), topics)
		}
		for _, t := range topics {
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderTopic(t, termWidth))
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&flagAgeGroup, "age-group", classify.AgeGroupYoung, "student age group (10-16 or 14-18)")
	enrichCmd.Flags().StringVar(&flagLanguage, "language", enrich.LanguageSpanish, "language of the cultural notes")
	enrichCmd.Flags().BoolVar(&flagPlain, "plain", false, "skip the live progress view")
	enrichCmd.Flags().BoolVar(&flagIngest, "ingest", false, "add the enriched resources to the knowledge base")
	addJSONFlag(enrichCmd)
	rootCmd.AddCommand(enrichCmd)
}
