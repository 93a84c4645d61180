package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Manage the module catalog",
}

var modulesImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Import modules from the \"modules\" sheet of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		report, err := app.Services.Catalog().Import(cmd.Context(), f)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, report)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d, skipped %d\n", report.Imported, report.Skipped)
		for _, e := range report.Errors {
			fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Message)
		}
		return nil
	},
}

var modulesTopicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the topic keys known to the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		topics := app.Services.Catalog().Topics()
		if jsonOutput {
			return printJSON(cmd, topics)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(topics, "\n"))
		return nil
	},
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Show the tier table",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		ranges := app.Services.Tier().Ranges()
		if jsonOutput {
			return printJSON(cmd, ranges)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tLABEL\tMIN\tMAX")
		for _, r := range ranges {
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\n", r.Key, r.Label, r.Min, r.Max)
		}
		return w.Flush()
	},
}

func init() {
	modulesCmd.AddCommand(modulesImportCmd, modulesTopicsCmd)
	rootCmd.AddCommand(modulesCmd, tiersCmd)
}
