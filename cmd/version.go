package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ScientiaCapital/claude-education-platform/internal/update"
)

var flagCheckUpdate bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, versionLine())
		if !flagCheckUpdate {
			return nil
		}
		res, err := update.Checker{}.Check(cmd.Context(), version)
		if err != nil {
			return err
		}
		if res.Newer() {
			fmt.Fprintf(out, "A newer release is available: %s %s\n", res.Latest, res.URL)
		} else {
			fmt.Fprintln(out, "You are running the latest release.")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "check GitHub for a newer release")
}
