package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"agbprep/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("AGBPREP_IMAGERY_URL", "https://imagery.example.org/v1/")
	t.Setenv("AGBPREP_IMAGERY_API_KEY", " secret ")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "agbprep", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.HistoryDB != filepath.Join(wantLogDir, "history.db") {
		t.Fatalf("unexpected history db: %q", cfg.Paths.HistoryDB)
	}
	if !filepath.IsAbs(cfg.Paths.WorkDir) {
		t.Fatalf("expected absolute work dir, got %q", cfg.Paths.WorkDir)
	}
	if cfg.Imagery.BaseURL != "https://imagery.example.org/v1" {
		t.Fatalf("expected base url from env without trailing slash, got %q", cfg.Imagery.BaseURL)
	}
	if cfg.Imagery.APIKey != "secret" {
		t.Fatalf("expected trimmed api key from env, got %q", cfg.Imagery.APIKey)
	}
	if cfg.Inventory.SubplotAreaM2 != config.Default().Inventory.SubplotAreaM2 {
		t.Fatalf("unexpected subplot area: %v", cfg.Inventory.SubplotAreaM2)
	}
	if cfg.Geometry.PlotAreaM2 != 750 {
		t.Fatalf("expected default plot area 750, got %v", cfg.Geometry.PlotAreaM2)
	}
	if cfg.Imagery.SkipPresentBands {
		t.Fatal("expected per-plot redownload by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadFromFileNormalizesBands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agbprep.toml")
	content := `
[imagery]
bands = [" b4", "B8", "b4", ""]
max_cloud_cover = 20.0

[imagery.band_scales]
b8 = 20.0

[logging]
format = "JSON"
level = " DEBUG "
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to resolve, got %q exists=%v", resolved, exists)
	}
	if strings.Join(cfg.Imagery.Bands, ",") != "B4,B8" {
		t.Fatalf("unexpected bands: %v", cfg.Imagery.Bands)
	}
	if cfg.ScaleFor("B8") != 20 {
		t.Fatalf("expected B8 scale override, got %v", cfg.ScaleFor("B8"))
	}
	if cfg.ScaleFor("B4") != cfg.Imagery.ScaleM {
		t.Fatalf("expected default scale for B4, got %v", cfg.ScaleFor("B4"))
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agbprep.toml")
	if err := os.WriteFile(path, []byte("[imagery]\ncloud = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"subplot area", func(c *config.Config) { c.Inventory.SubplotAreaM2 = 0 }, "subplot_area_m2"},
		{"plot area", func(c *config.Config) { c.Geometry.PlotAreaM2 = -1 }, "plot_area_m2"},
		{"segments", func(c *config.Config) { c.Geometry.Segments = 16 }, "segments"},
		{"cloud", func(c *config.Config) { c.Imagery.MaxCloudCover = 101 }, "max_cloud_cover"},
		{"bands", func(c *config.Config) { c.Imagery.Bands = nil }, "bands"},
		{"season", func(c *config.Config) { c.Imagery.SeasonStart = "13-40" }, "season_start"},
		{"drop required", func(c *config.Config) { c.Inventory.DropColumns = []string{"agb"} }, "drop_columns"},
		{"duplicate column", func(c *config.Config) { c.Inventory.LatColumn = "lon" }, "lon"},
		{"timeout", func(c *config.Config) { c.Imagery.QueryTimeoutSeconds = 0 }, "query_timeout_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSeasonWindowSpansNewYear(t *testing.T) {
	cfg := config.Default()
	cfg.Imagery.Year = 2022
	cfg.Imagery.SeasonStart = "10-01"
	cfg.Imagery.SeasonEnd = "03-31"

	start, end, err := cfg.SeasonWindow()
	if err != nil {
		t.Fatalf("SeasonWindow: %v", err)
	}
	if !start.Equal(time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start: %v", start)
	}
	if !end.Equal(time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end: %v", end)
	}
}

func TestSeasonWindowWithinYear(t *testing.T) {
	cfg := config.Default()
	cfg.Imagery.Year = 2021
	cfg.Imagery.SeasonStart = "03-01"
	cfg.Imagery.SeasonEnd = "05-31"

	start, end, err := cfg.SeasonWindow()
	if err != nil {
		t.Fatalf("SeasonWindow: %v", err)
	}
	if start.Year() != 2021 || end.Year() != 2021 || end.Month() != time.June {
		t.Fatalf("unexpected window: %v - %v", start, end)
	}
}

func TestValidateImageryServiceRequiresURL(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateImageryService(); err == nil {
		t.Fatal("expected error without base url")
	}
	cfg.Imagery.BaseURL = "http://localhost:9000"
	if err := cfg.ValidateImageryService(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Geometry.PlotAreaM2 != 750 {
		t.Fatalf("unexpected sample plot area: %v", cfg.Geometry.PlotAreaM2)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
