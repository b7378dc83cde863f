package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"agbprep/internal/pipeline"
)

func newStageCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newPrepareCommand(ctx),
		newAggregateCommand(ctx),
		newAOICommand(ctx),
		newAcquireCommand(ctx),
		newRunCommand(ctx),
	}
}

// withRunner runs fn with a wired pipeline runner under a context that is
// cancelled on SIGINT/SIGTERM.
func withRunner(cmd *cobra.Command, ctx *commandContext, fn func(context.Context, *pipeline.Runner) error) error {
	defer ctx.close()
	runner, err := ctx.newRunner()
	if err != nil {
		return err
	}
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return fn(signalCtx, runner)
}

func newPrepareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Decompose identifiers and clean the raw subplot table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, ctx, func(runCtx context.Context, runner *pipeline.Runner) error {
				report, err := runner.Prepare(runCtx)
				if err != nil {
					return err
				}
				printPrepare(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func newAggregateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate cleaned subplots into plot-level biomass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, ctx, func(runCtx context.Context, runner *pipeline.Runner) error {
				report, err := runner.Aggregate(runCtx)
				if err != nil {
					return err
				}
				printAggregate(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func newAOICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "aoi",
		Short: "Write one circular plot geometry per plot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, ctx, func(runCtx context.Context, runner *pipeline.Runner) error {
				report, err := runner.BuildAOIs(runCtx)
				if err != nil {
					return err
				}
				printAOI(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func newAcquireCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Download band rasters for every pending plot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, ctx, func(runCtx context.Context, runner *pipeline.Runner) error {
				report, err := runner.Acquire(runCtx)
				if jsonOutput {
					if jsonErr := writeJSON(cmd, report); jsonErr != nil {
						return jsonErr
					}
				} else if report.Plots > 0 {
					printAcquire(cmd.OutOrStdout(), report)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run prepare, aggregate, aoi, and acquire in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, ctx, func(runCtx context.Context, runner *pipeline.Runner) error {
				report, err := runner.RunAll(runCtx)
				out := cmd.OutOrStdout()
				if report.Prepare.Clean.InputRows > 0 {
					printPrepare(out, report.Prepare)
				}
				if report.Aggregate.Subplots > 0 {
					printAggregate(out, report.Aggregate)
				}
				if len(report.AOI.Paths) > 0 {
					printAOI(out, report.AOI)
				}
				if report.Acquire.Plots > 0 {
					printAcquire(out, report.Acquire)
				}
				return err
			})
		},
	}
}

func printPrepare(out io.Writer, report pipeline.PrepareReport) {
	clean := report.Clean
	fmt.Fprintf(out, "Prepared %d subplot records -> %s\n", report.Records, report.Output)
	fmt.Fprintf(out, "  input rows: %d, null rows dropped: %d, duplicates dropped: %d\n",
		clean.InputRows, clean.NullRows, clean.DuplicateRows)
	if len(clean.DroppedColumns) > 0 {
		fmt.Fprintf(out, "  dropped columns: %s\n", strings.Join(clean.DroppedColumns, ", "))
	}
}

func printAggregate(out io.Writer, report pipeline.AggregateReport) {
	fmt.Fprintf(out, "Aggregated %d subplots into %d plots -> %s\n", report.Subplots, report.Plots, report.Output)
	if report.SingleSubplot > 0 {
		fmt.Fprintf(out, "  plots with a single subplot: %d\n", report.SingleSubplot)
	}
}

func printAOI(out io.Writer, report pipeline.AOIReport) {
	fmt.Fprintf(out, "Wrote %d plot geometries -> %s\n", len(report.Paths), report.Dir)
	if len(report.Removed) > 0 {
		fmt.Fprintf(out, "  removed geometries of dropped plots: %d\n", len(report.Removed))
	}
}

func printAcquire(out io.Writer, report pipeline.AcquireReport) {
	s := report.Summary
	rows := [][]string{
		{"Plots processed", strconv.Itoa(s.PlotsProcessed)},
		{"Completed", strconv.Itoa(s.PlotsCompleted)},
		{"Skipped (already complete)", strconv.Itoa(s.PlotsSkipped)},
		{"No imagery", strconv.Itoa(s.PlotsNoImagery)},
		{"Failed", strconv.Itoa(s.PlotsFailed)},
		{"Bands downloaded", strconv.Itoa(s.BandsDownloaded)},
		{"Bands failed", strconv.Itoa(s.BandsFailed)},
		{"Bytes downloaded", strconv.FormatInt(s.BytesDownloaded, 10)},
	}
	fmt.Fprintf(out, "Acquisition run %s\n", report.RunID)
	fmt.Fprintln(out, renderTable(out, []string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintln(out, "Failures:")
	for _, failure := range s.Failures {
		fmt.Fprintf(out, "  %s\n", failure)
	}
}
