package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qaloop-dev/qaloop/internal/history"
	"github.com/qaloop-dev/qaloop/internal/observability"
)

// newRunsCmd inspects the local run-history database.
func newRunsCmd() *cobra.Command {
	var limit int

	runsCmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recent suite runs, or the scenario outcomes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in the configuration")
			}
			store, err := history.Open(cfg.History.Path, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to open history database: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				return printRunScenarios(cmd, store, args[0])
			}
			return printRecentRuns(cmd, store, limit)
		},
	}

	runsCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to show")
	return runsCmd
}

func printRecentRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs.")
		return nil
	}

	fmt.Fprintf(out, "%-36s %-20s %-9s %-9s %-7s %-13s %-17s %s\n",
		"Run ID", "Started", "Duration", "Scenarios", "Passed", "Failed steps", "Failed asserts", "As expected")
	for _, r := range runs {
		duration := r.FinishedAt.Sub(r.StartedAt).Round(time.Second)
		fmt.Fprintf(out, "%-36s %-20s %-9s %-9d %-7d %-13d %-17d %d/%d\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			r.Scenarios, r.Passed, r.FailedSteps, r.FailedAssertions,
			r.Correct, r.Scenarios)
	}
	return nil
}

func printRunScenarios(cmd *cobra.Command, store *history.Store, runID string) error {
	rows, err := store.RunScenarios(cmd.Context(), runID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		return fmt.Errorf("no scenarios recorded for run %q", runID)
	}

	fmt.Fprintf(out, "%-28s %-18s %-6s %-9s %-11s %s\n",
		"Scenario", "Verdict", "Steps", "Duration", "As expected", "Detail")
	for _, row := range rows {
		match := "no"
		if row.Correct {
			match = "yes"
		}
		fmt.Fprintf(out, "%-28s %-18s %-6d %-9s %-11s %s\n",
			row.Name, row.Verdict, row.Steps, row.Duration.Round(time.Second), match, row.Detail)
	}
	return nil
}
