package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
	"github.com/ScientiaCapital/claude-education-platform/internal/kb"
	"github.com/ScientiaCapital/claude-education-platform/internal/scraper"
	"github.com/ScientiaCapital/claude-education-platform/internal/tui"
)

const termWidth = 100

var (
	flagScrapeType     string
	flagScrapeDepth    int
	flagScrapeMaxPages int
	flagIngest         bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape URL",
	Short: "Scrape a tutorial page and extract its learning metadata",
	Long: `Fetch URL as markdown, extract learning objectives, prerequisites and
difficulty, and optionally follow related tutorial links on the page.

Results are cached per URL and content type.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ct, err := classify.ParseContentType(flagScrapeType)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		res := a.scraper.Scrape(ctx, args[0], scraperOptions(ct))
		if res.Error != "" {
			return errors.New(res.Error)
		}

		if flagIngest {
			k, err := a.knowledgeBase(ctx)
			if err != nil {
				return err
			}
			n, err := k.Add(ctx, kb.FromScrape(res))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Added %d passage(s) to the knowledge base.\n", n)
		}

		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderScrape(res, termWidth))
		if flagVerbose {
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderReport(a.scraper.Report()))
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVarP(&flagScrapeType, "type", "t", "tutorial", "content type: tutorial, documentation or course")
	scrapeCmd.Flags().IntVar(&flagScrapeDepth, "depth", 1, "follow related tutorial links when greater than 1")
	scrapeCmd.Flags().IntVar(&flagScrapeMaxPages, "max-pages", 10, "maximum pages to fetch including the start page")
	scrapeCmd.Flags().BoolVar(&flagIngest, "ingest", false, "add the scraped pages to the knowledge base")
	addJSONFlag(scrapeCmd)
	rootCmd.AddCommand(scrapeCmd)
}

func scraperOptions(ct classify.ContentType) scraper.Options {
	return scraper.Options{ContentType: ct, Depth: flagScrapeDepth, MaxPages: flagScrapeMaxPages}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
