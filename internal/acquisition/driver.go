package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"agbprep/internal/aoi"
	"agbprep/internal/config"
	"agbprep/internal/fileutil"
	"agbprep/internal/history"
	"agbprep/internal/imagery"
	"agbprep/internal/logging"
	"agbprep/internal/metrics"
	"agbprep/internal/services"
)

const (
	stageName    = "acquire"
	lockFileName = ".agbprep.lock"
)

// ErrLocked reports another acquisition run holding the imagery root.
var ErrLocked = errors.New("imagery directory is locked by another run")

// Catalog is the imagery service surface used by the driver.
type Catalog interface {
	Search(ctx context.Context, req imagery.SearchRequest) ([]imagery.Scene, error)
	Fetch(ctx context.Context, req imagery.ExtractRequest) (*imagery.Raster, error)
}

// Ledger receives per-band outcomes. Ledger failures are logged and never
// change the outcome of a run.
type Ledger interface {
	RecordBand(ctx context.Context, outcome history.BandOutcome) error
}

// Dependencies are the driver's collaborators.
type Dependencies struct {
	Catalog Catalog
	Ledger  Ledger
	Metrics *metrics.AcquisitionCollector
	Now     func() time.Time
}

// Driver downloads band rasters for every pending plot.
type Driver struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog Catalog
	ledger  Ledger
	metrics *metrics.AcquisitionCollector
	now     func() time.Time
}

// NewDriver constructs a driver backed by the configured catalog client.
func NewDriver(cfg *config.Config, logger *slog.Logger) *Driver {
	return NewDriverWithDependencies(cfg, logger, Dependencies{Catalog: imagery.NewConfiguredClient(cfg)})
}

// NewDriverWithDependencies allows injecting collaborators (used in tests).
func NewDriverWithDependencies(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Driver {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "acquisition"),
		catalog: deps.Catalog,
		ledger:  deps.Ledger,
		metrics: deps.Metrics,
		now:     now,
	}
}

// YearDir is the output root for the configured acquisition year.
func (d *Driver) YearDir() string {
	return d.cfg.YearDir()
}

// LockPath is the single-run lock file under the imagery root.
func (d *Driver) LockPath() string {
	return filepath.Join(d.cfg.Paths.ImageryDir, lockFileName)
}

// Run processes the geometry files in order and returns the end-of-run
// summary. The returned error is non-nil only for fatal conditions; the
// summary still reflects the plots handled before it.
func (d *Driver) Run(ctx context.Context, aoiPaths []string) (Summary, error) {
	var summary Summary
	if d.catalog == nil {
		return summary, services.Wrap(services.ErrConfiguration, stageName, "init", "imagery catalog not configured", nil)
	}
	start, end, err := d.cfg.SeasonWindow()
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, stageName, "season window", "invalid season", err)
	}
	if err := os.MkdirAll(d.YearDir(), 0o755); err != nil {
		return summary, services.Wrap(services.ErrFilesystem, stageName, "create year dir", d.YearDir(), err)
	}

	lock := flock.New(d.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return summary, services.Wrap(services.ErrFilesystem, stageName, "acquire lock", d.LockPath(), err)
	}
	if !locked {
		return summary, services.Wrap(services.ErrFilesystem, stageName, "acquire lock", d.LockPath(), ErrLocked)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			d.logger.Warn("failed to release acquisition lock", logging.String("lock", d.LockPath()), logging.Error(err))
		}
	}()

	ctx = services.WithStage(ctx, stageName)
	logger := logging.WithContext(ctx, d.logger)
	logger.Info(
		"acquisition started",
		logging.Int("plots", len(aoiPaths)),
		logging.Int("bands", len(d.cfg.Imagery.Bands)),
		logging.String("window_start", start.Format(time.DateOnly)),
		logging.String("window_end", end.Format(time.DateOnly)),
		logging.Float64("max_cloud_cover", d.cfg.Imagery.MaxCloudCover),
	)

	window := searchWindow{start: start, end: end}
	for _, path := range aoiPaths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := d.processPlot(ctx, path, window, &summary); err != nil {
			return summary, err
		}
	}
	d.metrics.MarkRun(d.now())

	logger.Info(
		"acquisition finished",
		logging.Int("plots_processed", summary.PlotsProcessed),
		logging.Int("plots_completed", summary.PlotsCompleted),
		logging.Int("plots_skipped", summary.PlotsSkipped),
		logging.Int("plots_no_imagery", summary.PlotsNoImagery),
		logging.Int("plots_failed", summary.PlotsFailed),
		logging.Int("bands_downloaded", summary.BandsDownloaded),
		logging.Int("bands_failed", summary.BandsFailed),
	)
	return summary, nil
}

type searchWindow struct {
	start time.Time
	end   time.Time
}

func (d *Driver) processPlot(ctx context.Context, path string, window searchWindow, summary *Summary) error {
	area, err := aoi.ReadFile(path)
	if err != nil {
		if errors.Is(err, aoi.ErrInvalidFile) {
			d.warnPlot(ctx, "unreadable geometry file, skipping plot", "aoi_invalid", filepath.Base(path), err)
			summary.Failures = append(summary.Failures, Failure{Plot: filepath.Base(path), Reason: err.Error()})
			d.finishPlot(summary, PlotFailed)
			return nil
		}
		return services.Wrap(services.ErrFilesystem, stageName, "read geometry", path, err)
	}

	plot := area.PlotIdentifier
	ctx = services.WithPlot(ctx, plot)
	logger := logging.WithContext(ctx, d.logger)
	bands := d.cfg.Imagery.Bands

	status, err := DetectState(d.YearDir(), plot, bands)
	if err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "detect state", plot, err)
	}
	if status.State == StateComplete {
		logger.Debug("plot already complete", logging.String("dir", status.Dir))
		for _, band := range bands {
			d.record(ctx, history.BandOutcome{Plot: plot, Band: band, Outcome: history.OutcomeSkipped, Detail: "plot complete"})
		}
		d.finishPlot(summary, PlotSkipped)
		return nil
	}

	if err := os.MkdirAll(status.Dir, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "create plot dir", status.Dir, err)
	}
	if removed, err := fileutil.RemoveStalePartials(status.Dir); err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "remove partial files", status.Dir, err)
	} else if removed > 0 {
		logger.Info("removed interrupted downloads", logging.Int("files", removed))
	}

	scene, err := d.selectScene(ctx, area, window)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if cleanupErr := d.removeEmptyPlotDir(status.Dir); cleanupErr != nil {
			return cleanupErr
		}
		if errors.Is(err, imagery.ErrNoImagery) {
			logging.WarnWithContext(logger, "no imagery available for plot", "no_imagery",
				logging.String(logging.FieldErrorHint, "widen the season window or raise imagery.max_cloud_cover"),
				logging.String(logging.FieldImpact, "plot left pending"),
			)
			for _, band := range bands {
				d.record(ctx, history.BandOutcome{Plot: plot, Band: band, Outcome: history.OutcomeNoImagery})
			}
			d.finishPlot(summary, PlotNoImagery)
			return nil
		}
		d.warnPlot(ctx, "catalog search failed", "catalog_search_failed", plot, err)
		summary.Failures = append(summary.Failures, Failure{Plot: plot, Reason: err.Error()})
		for _, band := range bands {
			d.record(ctx, history.BandOutcome{Plot: plot, Band: band, Outcome: history.OutcomeFailed, Detail: err.Error()})
		}
		d.finishPlot(summary, PlotFailed)
		return nil
	}
	logger.Info(
		"selected scene",
		logging.String("scene_id", scene.ID),
		logging.Float64("cloud_cover", scene.CloudCover),
	)

	present := make(map[string]bool, len(status.Present))
	for _, band := range status.Present {
		present[band] = true
	}
	for _, band := range bands {
		if d.cfg.Imagery.SkipPresentBands && present[band] {
			summary.BandsSkipped++
			d.metrics.ObserveBand(band, history.OutcomeSkipped, 0)
			d.record(ctx, history.BandOutcome{Plot: plot, Band: band, SceneID: scene.ID, Outcome: history.OutcomeSkipped, Detail: "band present"})
			continue
		}
		if err := d.downloadBand(ctx, area, scene, band, summary); err != nil {
			return err
		}
	}

	final, err := DetectState(d.YearDir(), plot, bands)
	if err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "detect state", plot, err)
	}
	if final.State == StateComplete {
		logger.Info("plot complete", logging.String("dir", final.Dir))
		d.finishPlot(summary, PlotCompleted)
		return nil
	}
	if len(final.Present) == 0 {
		if err := d.removeEmptyPlotDir(final.Dir); err != nil {
			return err
		}
	}
	logging.WarnWithContext(logger, "plot incomplete", "plot_incomplete",
		logging.Any("missing_bands", final.Missing),
		logging.String(logging.FieldErrorHint, "rerun acquire to retry the missing bands"),
		logging.String(logging.FieldImpact, "plot left pending"),
	)
	d.finishPlot(summary, PlotFailed)
	return nil
}

func (d *Driver) selectScene(ctx context.Context, area aoi.AOI, window searchWindow) (imagery.Scene, error) {
	started := time.Now()
	scenes, err := d.catalog.Search(ctx, imagery.SearchRequest{
		Region:        area.Polygon,
		Start:         window.start,
		End:           window.end,
		MaxCloudCover: d.cfg.Imagery.MaxCloudCover,
	})
	d.metrics.ObserveQuery(time.Since(started), services.Classify(noImageryAsOK(err)))
	if err != nil {
		return imagery.Scene{}, err
	}
	if len(scenes) == 0 {
		return imagery.Scene{}, imagery.ErrNoImagery
	}
	return scenes[0], nil
}

func noImageryAsOK(err error) error {
	if errors.Is(err, imagery.ErrNoImagery) {
		return nil
	}
	return err
}

// downloadBand fetches one band. Only filesystem and cancellation errors are
// returned; everything else is recorded as a band failure.
func (d *Driver) downloadBand(ctx context.Context, area aoi.AOI, scene imagery.Scene, band string, summary *Summary) error {
	plot := area.PlotIdentifier
	ctx = services.WithBand(ctx, band)
	logger := logging.WithContext(ctx, d.logger)
	target := BandPath(d.YearDir(), plot, band)

	fail := func(err error) {
		logging.WarnWithContext(logger, "band download failed", "band_download_failed",
			logging.String("scene_id", scene.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rerun acquire to retry; check catalog availability"),
			logging.String(logging.FieldImpact, "band missing, plot left pending"),
		)
		summary.BandsFailed++
		summary.Failures = append(summary.Failures, Failure{Plot: plot, Band: band, Reason: err.Error()})
		d.metrics.ObserveBand(band, history.OutcomeFailed, 0)
		d.record(ctx, history.BandOutcome{Plot: plot, Band: band, SceneID: scene.ID, Outcome: history.OutcomeFailed, Detail: err.Error()})
	}

	raster, err := d.catalog.Fetch(ctx, imagery.ExtractRequest{
		SceneID: scene.ID,
		Band:    band,
		Scale:   d.cfg.ScaleFor(band),
		Region:  area.Polygon,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		fail(err)
		return nil
	}
	written, err := fileutil.WriteStreamAtomic(target, raster, 0o644)
	closeErr := raster.Close()
	if err != nil {
		if fileutil.IsSourceError(err) {
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return err
			}
			fail(err)
			return nil
		}
		return services.Wrap(services.ErrFilesystem, stageName, "write raster", target, err)
	}
	if closeErr != nil {
		logger.Debug("raster stream close failed", logging.Error(closeErr))
	}

	logger.Info("band downloaded", logging.String("file", filepath.Base(target)), logging.Int64("bytes", written))
	summary.BandsDownloaded++
	summary.BytesDownloaded += written
	d.metrics.ObserveBand(band, history.OutcomeDownloaded, written)
	d.record(ctx, history.BandOutcome{Plot: plot, Band: band, SceneID: scene.ID, Outcome: history.OutcomeDownloaded, Bytes: written})
	return nil
}

func (d *Driver) removeEmptyPlotDir(dir string) error {
	if _, err := fileutil.RemoveDirIfEmpty(dir); err != nil {
		return services.Wrap(services.ErrFilesystem, stageName, "remove empty plot dir", dir, err)
	}
	return nil
}

func (d *Driver) finishPlot(summary *Summary, outcome string) {
	summary.addPlot(outcome)
	d.metrics.ObservePlot(outcome)
}

func (d *Driver) warnPlot(ctx context.Context, msg, eventType, plot string, err error) {
	if _, ok := services.PlotFromContext(ctx); !ok {
		ctx = services.WithPlot(ctx, plot)
	}
	logging.WarnWithContext(logging.WithContext(ctx, d.logger), msg, eventType,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, fmt.Sprintf("inspect %s and rerun acquire", plot)),
		logging.String(logging.FieldImpact, "plot skipped for this run"),
	)
}

func (d *Driver) record(ctx context.Context, outcome history.BandOutcome) {
	if d.ledger == nil {
		return
	}
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		return
	}
	outcome.RunID = runID
	outcome.RecordedAt = d.now()
	if err := d.ledger.RecordBand(ctx, outcome); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "run ledger write failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history_db permissions"),
			logging.String(logging.FieldImpact, "history incomplete; downloads unaffected"),
		)
	}
}
