package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agbprep/internal/acquisition"
	"agbprep/internal/aoi"
)

type plotStatusJSON struct {
	Plot    string   `json:"plot"`
	State   string   `json:"state"`
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var pendingOnly bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-plot acquisition state without contacting the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := aoi.List(cfg.Paths.AOIDir)
			if err != nil {
				return fmt.Errorf("list geometries: %w", err)
			}
			statuses, err := acquisition.Inspect(cfg.YearDir(), paths, cfg.Imagery.Bands)
			if err != nil {
				return fmt.Errorf("inspect imagery: %w", err)
			}
			if pendingOnly {
				filtered := statuses[:0]
				for _, status := range statuses {
					if status.State == acquisition.StatePending {
						filtered = append(filtered, status)
					}
				}
				statuses = filtered
			}

			if jsonOutput {
				items := make([]plotStatusJSON, 0, len(statuses))
				for _, status := range statuses {
					items = append(items, plotStatusJSON{
						Plot:    status.PlotIdentifier,
						State:   string(status.State),
						Present: nonNil(status.Present),
						Missing: nonNil(status.Missing),
					})
				}
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(statuses) == 0 {
				fmt.Fprintf(out, "No plot geometries in %s\n", cfg.Paths.AOIDir)
				return nil
			}
			complete := 0
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				if status.State == acquisition.StateComplete {
					complete++
				}
				rows = append(rows, []string{
					status.PlotIdentifier,
					string(status.State),
					fmt.Sprintf("%d/%d", len(status.Present), len(cfg.Imagery.Bands)),
					strings.Join(status.Missing, ","),
				})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Plot", "State", "Bands", "Missing"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
			fmt.Fprintf(out, "%d of %d plots complete for %d\n", complete, len(statuses), cfg.Imagery.Year)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print statuses as JSON")
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only list pending plots")
	return cmd
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
