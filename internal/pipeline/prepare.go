package pipeline

import (
	"context"

	"agbprep/internal/inventory"
	"agbprep/internal/logging"
	"agbprep/internal/services"
)

// PrepareReport describes the prepare stage.
type PrepareReport struct {
	Input   string
	Output  string
	Clean   inventory.CleanReport
	Records int
}

// Prepare decomposes identifiers, cleans the raw table, and writes the typed
// subplot file.
func (r *Runner) Prepare(ctx context.Context) (PrepareReport, error) {
	ctx, _ = r.ensureRunID(ctx)
	ctx = services.WithStage(ctx, StagePrepare)
	logger := r.stageLogger(ctx)
	inv := r.cfg.Inventory
	report := PrepareReport{Input: r.cfg.Paths.InputCSV, Output: r.cfg.CleanSubplotsPath()}

	raw, err := inventory.ReadTableFile(report.Input)
	if err != nil {
		return report, readErr(StagePrepare, "read input", report.Input, err)
	}
	if err := raw.Require(inv.IdentifierColumn, inv.LonColumn, inv.LatColumn, inv.AGBColumn); err != nil {
		return report, services.Wrap(services.ErrValidation, StagePrepare, "validate schema", report.Input, err)
	}

	nulls := inventory.NewNullSet(inv.NullTokens)
	decomposed, err := inventory.DecomposeTable(raw, inv.IdentifierColumn, inv.IdentifierDelimiter, nulls)
	if err != nil {
		return report, services.Wrap(services.ErrValidation, StagePrepare, "decompose identifiers", report.Input, err)
	}

	cleaner := inventory.Cleaner{DropColumns: inv.DropColumns, Nulls: nulls}
	cleaned, cleanReport := cleaner.Clean(decomposed)
	report.Clean = cleanReport

	records, err := inventory.ToSubplotRecords(cleaned, inventory.Columns{
		Lon: inv.LonColumn,
		Lat: inv.LatColumn,
		AGB: inv.AGBColumn,
	})
	if err != nil {
		return report, services.Wrap(services.ErrValidation, StagePrepare, "convert records", report.Input, err)
	}
	report.Records = len(records)

	if err := inventory.WriteSubplotsFile(report.Output, records); err != nil {
		return report, services.Wrap(services.ErrFilesystem, StagePrepare, "write subplots", report.Output, err)
	}

	logger.Info(
		"prepare complete",
		logging.String("output", report.Output),
		logging.Int("input_rows", cleanReport.InputRows),
		logging.Any("dropped_columns", cleanReport.DroppedColumns),
		logging.Int("null_rows", cleanReport.NullRows),
		logging.Int("duplicate_rows", cleanReport.DuplicateRows),
		logging.Int("records", report.Records),
	)
	return report, nil
}
