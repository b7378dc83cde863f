package pipeline

import (
	"context"

	"agbprep/internal/aggregate"
	"agbprep/internal/inventory"
	"agbprep/internal/logging"
	"agbprep/internal/services"
)

// AggregateReport describes the aggregate stage.
type AggregateReport struct {
	Input         string
	Output        string
	Subplots      int
	Plots         int
	SingleSubplot int
}

// Aggregate reads the cleaned subplot file and writes plot aggregates.
func (r *Runner) Aggregate(ctx context.Context) (AggregateReport, error) {
	ctx, _ = r.ensureRunID(ctx)
	ctx = services.WithStage(ctx, StageAggregate)
	logger := r.stageLogger(ctx)
	report := AggregateReport{Input: r.cfg.CleanSubplotsPath(), Output: r.cfg.PlotsPath()}

	records, err := inventory.ReadSubplotsFile(report.Input)
	if err != nil {
		return report, readErr(StageAggregate, "read subplots", report.Input, err)
	}
	report.Subplots = len(records)

	aggregator := aggregate.Aggregator{
		SubplotAreaM2: r.cfg.Inventory.SubplotAreaM2,
		Delimiter:     r.cfg.Inventory.IdentifierDelimiter,
	}
	plots, err := aggregator.Aggregate(records)
	if err != nil {
		return report, services.Wrap(services.ErrConfiguration, StageAggregate, "aggregate", "invalid subplot area", err)
	}
	report.Plots = len(plots)
	for _, plot := range plots {
		if plot.SubplotCount == 1 {
			report.SingleSubplot++
		}
	}

	if err := aggregate.WritePlotsFile(report.Output, plots); err != nil {
		return report, services.Wrap(services.ErrFilesystem, StageAggregate, "write plots", report.Output, err)
	}

	logger.Info(
		"aggregate complete",
		logging.String("output", report.Output),
		logging.Int("subplots", report.Subplots),
		logging.Int("plots", report.Plots),
		logging.Int("single_subplot_plots", report.SingleSubplot),
	)
	return report, nil
}
