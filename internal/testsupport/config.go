package testsupport

import (
	"path/filepath"
	"testing"

	"agbprep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputCSV = filepath.Join(base, "raw", "subplots.csv")
	cfgVal.Paths.WorkDir = filepath.Join(base, "processed")
	cfgVal.Paths.AOIDir = filepath.Join(base, "aoi")
	cfgVal.Paths.ImageryDir = filepath.Join(base, "imagery")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "logs", "history.db")
	cfgVal.Imagery.BaseURL = "http://catalog.invalid"
	cfgVal.Imagery.Bands = []string{"B4", "B8"}
	cfgVal.Imagery.MinFreeMiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBands overrides the configured band list.
func WithBands(bands ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Imagery.Bands = append([]string(nil), bands...)
	}
}

// WithImageryURL points the catalog client at a test server.
func WithImageryURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Imagery.BaseURL = url
	}
}

// WithSkipPresentBands enables per-band resume.
func WithSkipPresentBands() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Imagery.SkipPresentBands = true
	}
}

// WithMetricsFile enables the textfile exporter.
func WithMetricsFile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.MetricsFile = filepath.Join(b.baseDir, "metrics", "agbprep.prom")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
