package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var recomputeAll bool

var recomputeCmd = &cobra.Command{
	Use:   "recompute [username]",
	Short: "Recompute module assignments from the latest exam results",
	Example: `  learnctl recompute alice
  learnctl recompute --all`,
	Args: func(cmd *cobra.Command, args []string) error {
		if recomputeAll && len(args) > 0 {
			return errors.New("--all takes no username")
		}
		if !recomputeAll && len(args) != 1 {
			return errors.New("expected a username or --all")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(app)

		assignments := app.Services.Assignment()
		out := cmd.OutOrStdout()

		if recomputeAll {
			report, err := assignments.RecomputeAll(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, report)
			}
			fmt.Fprintf(out, "Users: %d  Changed: %d  Failed: %d  (%s)\n",
				report.Users, report.Changed, report.Failed, report.Duration)
			for _, f := range report.Failures {
				fmt.Fprintln(out, "  failed:", f)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d users failed", report.Failed)
			}
			return nil
		}

		outcome, err := assignments.Recompute(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, outcome)
		}
		fmt.Fprintf(out, "%s: overall %d%%, advanced=%t, changed=%t\n",
			args[0], outcome.OverallPct, outcome.AdvancedUser, outcome.Changed)
		for _, s := range outcome.TopicStats {
			fmt.Fprintf(out, "  %-24s %3d%% (%d/%d) %s\n", s.Label, s.Pct, s.Correct, s.Total, s.Tier)
		}
		fmt.Fprintf(out, "  assigned:   %v\n", outcome.AssignedIDs)
		fmt.Fprintf(out, "  accessible: %v\n", outcome.AccessibleIDs)
		return nil
	},
}

func init() {
	recomputeCmd.Flags().BoolVar(&recomputeAll, "all", false, "recompute every user with progress or results")
	rootCmd.AddCommand(recomputeCmd)
}
