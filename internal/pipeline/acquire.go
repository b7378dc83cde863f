package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"agbprep/internal/acquisition"
	"agbprep/internal/aoi"
	"agbprep/internal/imagery"
	"agbprep/internal/logging"
	"agbprep/internal/preflight"
	"agbprep/internal/services"
)

// AcquireReport describes the acquire stage.
type AcquireReport struct {
	RunID   string
	Plots   int
	Summary acquisition.Summary
}

// Acquire downloads imagery for every geometry file in the AOI directory.
// The run is recorded in the ledger and, when configured, exported as a
// metrics textfile. Both are best effort.
func (r *Runner) Acquire(ctx context.Context) (AcquireReport, error) {
	ctx, runID := r.ensureRunID(ctx)
	ctx = services.WithStage(ctx, StageAcquire)
	logger := r.stageLogger(ctx)
	report := AcquireReport{RunID: runID}

	if r.deps.Catalog == nil {
		if err := r.cfg.ValidateImageryService(); err != nil {
			return report, services.Wrap(services.ErrConfiguration, StageAcquire, "validate config", "catalog not configured", err)
		}
	}
	if err := r.cfg.EnsureDirectories(); err != nil {
		return report, services.Wrap(services.ErrFilesystem, StageAcquire, "ensure directories", "", err)
	}
	if err := preflight.Gate(preflight.Filesystem(r.cfg)); err != nil {
		return report, err
	}

	paths, err := aoi.List(r.cfg.Paths.AOIDir)
	if err != nil {
		return report, services.Wrap(services.ErrFilesystem, StageAcquire, "list geometries", r.cfg.Paths.AOIDir, err)
	}
	if len(paths) == 0 {
		return report, services.Wrap(services.ErrValidation, StageAcquire, "list geometries",
			fmt.Sprintf("no geometry files in %s; run 'agbprep aoi' first", r.cfg.Paths.AOIDir), nil)
	}
	report.Plots = len(paths)

	catalog := r.deps.Catalog
	if catalog == nil {
		catalog = imagery.NewConfiguredClient(r.cfg)
	}
	var ledger acquisition.Ledger
	if r.deps.Ledger != nil {
		if err := r.deps.Ledger.BeginRun(ctx, runID, StageAcquire, r.deps.Now()); err != nil {
			r.warnLedger(logger, err)
		} else {
			ledger = r.deps.Ledger
		}
	}

	driver := acquisition.NewDriverWithDependencies(r.cfg, r.logger, acquisition.Dependencies{
		Catalog: catalog,
		Ledger:  ledger,
		Metrics: r.deps.Metrics,
		Now:     r.deps.Now,
	})
	summary, runErr := driver.Run(ctx, paths)
	report.Summary = summary

	if ledger != nil {
		message := ""
		if runErr != nil {
			message = runErr.Error()
		}
		if err := r.deps.Ledger.FinishRun(context.WithoutCancel(ctx), runID, r.deps.Now(), summary.Counts(), message); err != nil {
			r.warnLedger(logger, err)
		}
	}
	if err := r.deps.Metrics.WriteTextfile(r.cfg.Paths.MetricsFile); err != nil {
		logging.WarnWithContext(logger, "metrics export failed", "metrics_export_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.metrics_file"),
			logging.String(logging.FieldImpact, "metrics for this run not exported"),
		)
	}
	return report, runErr
}

func (r *Runner) warnLedger(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "run ledger unavailable", "ledger_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check paths.history_db"),
		logging.String(logging.FieldImpact, "history incomplete; downloads unaffected"),
	)
}
