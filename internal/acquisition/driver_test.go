package acquisition_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"agbprep/internal/acquisition"
	"agbprep/internal/config"
	"agbprep/internal/fileutil"
	"agbprep/internal/history"
	"agbprep/internal/imagery"
	"agbprep/internal/metrics"
	"agbprep/internal/services"
	"agbprep/internal/testsupport"
)

type fakeCatalog struct {
	scenes      []imagery.Scene
	searchErr   error
	fetchErr    map[string]error
	brokenBands map[string]bool

	searches []imagery.SearchRequest
	fetches  []imagery.ExtractRequest
}

func (f *fakeCatalog) Search(_ context.Context, req imagery.SearchRequest) ([]imagery.Scene, error) {
	f.searches = append(f.searches, req)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.scenes) == 0 {
		return nil, imagery.ErrNoImagery
	}
	return f.scenes, nil
}

func (f *fakeCatalog) Fetch(_ context.Context, req imagery.ExtractRequest) (*imagery.Raster, error) {
	f.fetches = append(f.fetches, req)
	if err := f.fetchErr[req.Band]; err != nil {
		return nil, err
	}
	payload := "raster:" + req.SceneID + ":" + req.Band
	if f.brokenBands[req.Band] {
		return imagery.NewRaster(io.NopCloser(&brokenReader{data: payload}), -1), nil
	}
	return imagery.NewRaster(io.NopCloser(strings.NewReader(payload)), int64(len(payload))), nil
}

type brokenReader struct {
	data string
	sent bool
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, b.data), nil
	}
	return 0, errors.New("connection reset by peer")
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		scenes: []imagery.Scene{
			{ID: "S2A_clear", CloudCover: 1.5},
			{ID: "S2B_hazy", CloudCover: 8},
		},
	}
}

func newDriver(cfg *config.Config, catalog acquisition.Catalog) *acquisition.Driver {
	return acquisition.NewDriverWithDependencies(cfg, nil, acquisition.Dependencies{Catalog: catalog})
}

func writeBand(t *testing.T, cfg *config.Config, plot, band string) {
	t.Helper()
	testsupport.WriteBytes(t, acquisition.BandPath(cfg.YearDir(), plot, band), 16)
}

func TestRunDownloadsEveryBandOfBestScene(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	paths := []string{
		testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717),
		testsupport.WriteAOI(t, cfg, "1-2", 85.330, 27.720),
	}
	catalog := newCatalog()

	summary, err := newDriver(cfg, catalog).Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.PlotsProcessed != 2 || summary.PlotsCompleted != 2 || summary.BandsDownloaded != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.HasFailures() {
		t.Fatalf("unexpected failures: %+v", summary.Failures)
	}
	if len(catalog.searches) != 2 || len(catalog.fetches) != 4 {
		t.Fatalf("expected 2 searches and 4 fetches, got %d and %d", len(catalog.searches), len(catalog.fetches))
	}

	path := filepath.Join(cfg.Paths.ImageryDir, "2022", "1-1", "1-1_B8.tif")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raster: %v", err)
	}
	if string(data) != "raster:S2A_clear:B8" {
		t.Fatalf("expected best scene raster, got %q", data)
	}
	if _, err := os.Stat(path + fileutil.PartSuffix); !os.IsNotExist(err) {
		t.Fatalf("expected no part file, stat err=%v", err)
	}
}

func TestRunSendsSeasonWindowAndPlanarRegion(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBands("B4"))
	path := testsupport.WriteAOI(t, cfg, "7-3", 84.1, 28.2)
	catalog := newCatalog()

	if _, err := newDriver(cfg, catalog).Run(context.Background(), []string{path}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	start, end, err := cfg.SeasonWindow()
	if err != nil {
		t.Fatal(err)
	}
	req := catalog.searches[0]
	if !req.Start.Equal(start) || !req.End.Equal(end) {
		t.Fatalf("unexpected window %s..%s", req.Start, req.End)
	}
	if req.MaxCloudCover != cfg.Imagery.MaxCloudCover {
		t.Fatalf("unexpected cloud threshold %v", req.MaxCloudCover)
	}
	ring := req.Region[0]
	if !ring.Closed() || len(ring) != cfg.Geometry.Segments+1 {
		t.Fatalf("unexpected region ring of %d points", len(ring))
	}
	if got := catalog.fetches[0].Scale; got != cfg.ScaleFor("B4") {
		t.Fatalf("unexpected scale %v", got)
	}
}

func TestRunSkipsCompletePlotWithoutCatalogCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717)
	for _, band := range cfg.Imagery.Bands {
		writeBand(t, cfg, "1-1", band)
	}
	catalog := newCatalog()

	summary, err := newDriver(cfg, catalog).Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.PlotsSkipped != 1 || summary.PlotsProcessed != 1 {
		t.Fatalf("expected plot skipped, got %+v", summary)
	}
	if len(catalog.searches) != 0 || len(catalog.fetches) != 0 {
		t.Fatalf("expected zero catalog calls, got %d searches %d fetches", len(catalog.searches), len(catalog.fetches))
	}
}

func TestRunTreatsPartFilesAsMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717)
	writeBand(t, cfg, "1-1", "B4")
	stale := acquisition.BandPath(cfg.YearDir(), "1-1", "B8") + fileutil.PartSuffix
	testsupport.WriteBytes(t, stale, 8)

	status, err := acquisition.DetectState(cfg.YearDir(), "1-1", cfg.Imagery.Bands)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != acquisition.StatePending || len(status.Missing) != 1 || status.Missing[0] != "B8" {
		t.Fatalf("expected B8 missing, got %+v", status)
	}

	catalog := newCatalog()
	summary, err := newDriver(cfg, catalog).Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.PlotsCompleted != 1 {
		t.Fatalf("expected completion, got %+v", summary)
	}
	if len(catalog.fetches) != 2 {
		t.Fatalf("pending plot should redownload every band, got %d fetches", len(catalog.fetches))
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale part file removed, stat err=%v", err)
	}
}

func TestRunSkipPresentBands(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSkipPresentBands())
	path := testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717)
	writeBand(t, cfg, "1-1", "B4")
	catalog := newCatalog()

	summary, err := newDriver(cfg, catalog).Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.fetches) != 1 || catalog.fetches[0].Band != "B8" {
		t.Fatalf("expected only B8 fetched, got %+v", catalog.fetches)
	}
	if summary.BandsSkipped != 1 || summary.BandsDownloaded != 1 || summary.PlotsCompleted != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunNoImageryRemovesEmptyPlotDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	paths := []string{
		testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717),
		testsupport.WriteAOI(t, cfg, "1-2", 85.330, 27.720),
	}
	catalog := &fakeCatalog{}

	summary, err := newDriver(cfg, catalog).Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("no imagery must not be fatal: %v", err)
	}
	if summary.PlotsNoImagery != 2 || len(catalog.searches) != 2 {
		t.Fatalf("expected both plots searched and reported, got %+v", summary)
	}
	if _, err := os.Stat(acquisition.PlotDir(cfg.YearDir(), "1-1")); !os.IsNotExist(err) {
		t.Fatalf("expected empty plot dir removed, stat err=%v", err)
	}
}

func TestRunIsolatesBandFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	paths := []string{
		testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717),
		testsupport.WriteAOI(t, cfg, "1-2", 85.330, 27.720),
	}
	catalog := newCatalog()
	catalog.fetchErr = map[string]error{
		"B8": services.Wrap(services.ErrTimeout, "imagery", "extract", "deadline exceeded", context.DeadlineExceeded),
	}

	summary, err := newDriver(cfg, catalog).Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("band failures must not be fatal: %v", err)
	}
	if summary.PlotsFailed != 2 || summary.BandsDownloaded != 2 || summary.BandsFailed != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Failures) != 2 || summary.Failures[0].Plot != "1-1" || summary.Failures[0].Band != "B8" {
		t.Fatalf("unexpected failures: %+v", summary.Failures)
	}
	if !fileutil.FileExists(acquisition.BandPath(cfg.YearDir(), "1-2", "B4")) {
		t.Fatal("expected the healthy band of the second plot to be written")
	}

	catalog.fetchErr = nil
	catalog.fetches = nil
	summary, err = newDriver(cfg, catalog).Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if summary.PlotsCompleted != 2 || len(catalog.fetches) != 4 {
		t.Fatalf("expected rerun to complete both plots, got %+v with %d fetches", summary, len(catalog.fetches))
	}
}

func TestRunBrokenStreamIsBandFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717)
	catalog := newCatalog()
	catalog.brokenBands = map[string]bool{"B4": true}

	summary, err := newDriver(cfg, catalog).Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("stream failure must not be fatal: %v", err)
	}
	if summary.BandsFailed != 1 || summary.BandsDownloaded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	target := acquisition.BandPath(cfg.YearDir(), "1-1", "B4")
	if fileutil.FileExists(target) || fileutil.FileExists(target+fileutil.PartSuffix) {
		t.Fatal("expected no artifact for the broken band")
	}
}

func TestRunSearchFailureIsPerPlot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	paths := []string{
		testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717),
		testsupport.WriteAOI(t, cfg, "1-2", 85.330, 27.720),
	}
	catalog := &fakeCatalog{searchErr: services.Wrap(services.ErrExternalService, "imagery", "search", "http 503", nil)}

	summary, err := newDriver(cfg, catalog).Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.PlotsFailed != 2 || len(catalog.searches) != 2 {
		t.Fatalf("expected both plots attempted and failed, got %+v", summary)
	}
}

func TestRunInvalidGeometryIsPerPlot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bad := filepath.Join(cfg.Paths.AOIDir, "broken.geojson")
	testsupport.WriteText(t, bad, `{"type":"FeatureCollection","features":[]}`)
	good := testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717)

	summary, err := newDriver(cfg, newCatalog()).Run(context.Background(), []string{bad, good})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.PlotsFailed != 1 || summary.PlotsCompleted != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunFilesystemErrorIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717)
	testsupport.WriteBytes(t, acquisition.PlotDir(cfg.YearDir(), "1-1"), 4)

	_, err := newDriver(cfg, newCatalog()).Run(context.Background(), []string{path})
	if !errors.Is(err, services.ErrFilesystem) || !services.IsFatal(err) {
		t.Fatalf("expected fatal filesystem error, got %v", err)
	}
}

func TestRunFailsFastWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	driver := newDriver(cfg, newCatalog())
	if err := os.MkdirAll(cfg.Paths.ImageryDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lock := flock.New(driver.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	_, err := driver.Run(context.Background(), nil)
	if !errors.Is(err, acquisition.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717)
	catalog := newCatalog()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDriver(cfg, catalog).Run(ctx, []string{path})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(catalog.searches) != 0 {
		t.Fatal("expected no catalog calls after cancel")
	}
}

func TestRunRecordsLedgerAndMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	paths := []string{
		testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717),
		testsupport.WriteAOI(t, cfg, "1-2", 85.330, 27.720),
	}
	for _, band := range cfg.Imagery.Bands {
		writeBand(t, cfg, "1-2", band)
	}
	store := testsupport.MustOpenHistory(t, cfg)
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewAcquisitionCollector(reg)
	if err != nil {
		t.Fatal(err)
	}

	ctx := services.WithRunID(context.Background(), "run-1")
	if err := store.BeginRun(ctx, "run-1", "acquire", time.Now()); err != nil {
		t.Fatal(err)
	}
	driver := acquisition.NewDriverWithDependencies(cfg, nil, acquisition.Dependencies{
		Catalog: newCatalog(),
		Ledger:  store,
		Metrics: collector,
	})
	if _, err := driver.Run(ctx, paths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	counts, err := store.OutcomeCounts(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if counts[history.OutcomeDownloaded] != 2 || counts[history.OutcomeSkipped] != 2 {
		t.Fatalf("unexpected ledger counts: %v", counts)
	}
	if got := testutil.ToFloat64(collector.Plots.WithLabelValues(acquisition.PlotCompleted)); got != 1 {
		t.Fatalf("plots_total{completed} = %v", got)
	}
	if got := testutil.ToFloat64(collector.Plots.WithLabelValues(acquisition.PlotSkipped)); got != 1 {
		t.Fatalf("plots_total{skipped} = %v", got)
	}
	if got := testutil.ToFloat64(collector.Bands.WithLabelValues("B4", history.OutcomeDownloaded)); got != 1 {
		t.Fatalf("band_downloads_total{B4,downloaded} = %v", got)
	}
	if testutil.ToFloat64(collector.LastRun) == 0 {
		t.Fatal("expected last run timestamp")
	}
}

func TestInspect(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	paths := []string{
		testsupport.WriteAOI(t, cfg, "1-1", 85.324, 27.717),
		testsupport.WriteAOI(t, cfg, "1-2", 85.330, 27.720),
	}
	for _, band := range cfg.Imagery.Bands {
		writeBand(t, cfg, "1-1", band)
	}
	writeBand(t, cfg, "1-2", "B8")

	statuses, err := acquisition.Inspect(cfg.YearDir(), paths, cfg.Imagery.Bands)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].State != acquisition.StateComplete {
		t.Fatalf("expected 1-1 complete, got %+v", statuses[0])
	}
	if statuses[1].State != acquisition.StatePending || len(statuses[1].Present) != 1 || statuses[1].Missing[0] != "B4" {
		t.Fatalf("expected 1-2 pending with B4 missing, got %+v", statuses[1])
	}
}
