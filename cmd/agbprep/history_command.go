package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent acquisition runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.Status,
					run.StartedAt.Local().Format(time.DateTime),
					formatDuration(run.Duration()),
					strconv.Itoa(run.Counts.PlotsCompleted),
					strconv.Itoa(run.Counts.PlotsSkipped),
					strconv.Itoa(run.Counts.PlotsNoImagery),
					strconv.Itoa(run.Counts.PlotsFailed),
					strconv.Itoa(run.Counts.BandsDownloaded),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Run", "Status", "Started", "Duration", "Completed", "Skipped", "No imagery", "Failed", "Bands"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the band outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outcomes, err := store.BandOutcomes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"run": run, "bands": outcomes})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s) started %s\n", run.ID, run.Status, run.StartedAt.Local().Format(time.DateTime))
			if run.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", run.Error)
			}
			counts, err := store.OutcomeCounts(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(counts))
			for key := range counts {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(out, "  %s: %d\n", key, counts[key])
			}
			if len(outcomes) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				rows = append(rows, []string{o.Plot, o.Band, o.Outcome, o.SceneID, strconv.FormatInt(o.Bytes, 10), o.Detail})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Plot", "Band", "Outcome", "Scene", "Bytes", "Detail"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the given number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			defer ctx.close()
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			removed, err := store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "older-than", 90, "Age in days")
	return cmd
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
