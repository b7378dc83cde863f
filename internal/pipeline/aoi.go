package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"agbprep/internal/aggregate"
	"agbprep/internal/aoi"
	"agbprep/internal/logging"
	"agbprep/internal/services"
)

// AOIReport describes the aoi stage.
type AOIReport struct {
	Input   string
	Dir     string
	Paths   []string
	Removed []string
}

// BuildAOIs reads plot aggregates and writes one geometry file per plot.
// Two identifiers that map to the same file name are rejected before any
// file is written. Geometry files for plots no longer in the plots table are
// removed so acquire does not fetch imagery for them; their rasters are kept.
func (r *Runner) BuildAOIs(ctx context.Context) (AOIReport, error) {
	ctx, _ = r.ensureRunID(ctx)
	ctx = services.WithStage(ctx, StageAOI)
	logger := r.stageLogger(ctx)
	report := AOIReport{Input: r.cfg.PlotsPath(), Dir: r.cfg.Paths.AOIDir}

	plots, err := aggregate.ReadPlotsFile(report.Input)
	if err != nil {
		return report, readErr(StageAOI, "read plots", report.Input, err)
	}
	if err := checkNameCollisions(plots); err != nil {
		return report, services.Wrap(services.ErrValidation, StageAOI, "name geometry files", report.Input, err)
	}

	builder, err := aoi.NewBuilder(r.cfg.Geometry.PlotAreaM2, r.cfg.Geometry.Segments, r.logger)
	if err != nil {
		return report, services.Wrap(services.ErrConfiguration, StageAOI, "init builder", "invalid geometry settings", err)
	}
	for _, plot := range plots {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		area, err := builder.Build(plot)
		if err != nil {
			return report, services.Wrap(services.ErrValidation, StageAOI, "build geometry", plot.PlotIdentifier, err)
		}
		path, err := aoi.WriteFile(report.Dir, area)
		if err != nil {
			return report, services.Wrap(services.ErrFilesystem, StageAOI, "write geometry", plot.PlotIdentifier, err)
		}
		report.Paths = append(report.Paths, path)
	}
	if report.Removed, err = removeStaleGeometries(report.Dir, report.Paths); err != nil {
		return report, services.Wrap(services.ErrFilesystem, StageAOI, "remove stale geometry", report.Dir, err)
	}

	logger.Info(
		"aoi complete",
		logging.String("dir", report.Dir),
		logging.Int("geometries", len(report.Paths)),
		logging.Int("removed", len(report.Removed)),
		logging.Float64("radius_m", builder.Radius()),
	)
	return report, nil
}

func checkNameCollisions(plots []aggregate.PlotAggregate) error {
	owners := make(map[string]string, len(plots))
	for _, plot := range plots {
		name := aoi.FileName(plot.PlotIdentifier)
		if other, ok := owners[name]; ok && other != plot.PlotIdentifier {
			return fmt.Errorf("plots %q and %q both map to %s", other, plot.PlotIdentifier, name)
		}
		owners[name] = plot.PlotIdentifier
	}
	return nil
}

func removeStaleGeometries(dir string, current []string) ([]string, error) {
	existing, err := aoi.List(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, path := range existing {
		if slices.Contains(current, path) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}
