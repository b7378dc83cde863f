package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Paths contains input and output locations for every pipeline stage.
type Paths struct {
	InputCSV    string `toml:"input_csv"`
	WorkDir     string `toml:"work_dir"`
	AOIDir      string `toml:"aoi_dir"`
	ImageryDir  string `toml:"imagery_dir"`
	LogDir      string `toml:"log_dir"`
	HistoryDB   string `toml:"history_db"`
	MetricsFile string `toml:"metrics_file"`
}

// Inventory describes the raw subplot table and the fixed sampling geometry.
type Inventory struct {
	IdentifierColumn    string   `toml:"identifier_column"`
	LonColumn           string   `toml:"lon_column"`
	LatColumn           string   `toml:"lat_column"`
	AGBColumn           string   `toml:"agb_column"`
	DropColumns         []string `toml:"drop_columns"`
	IdentifierDelimiter string   `toml:"identifier_delimiter"`
	// SubplotAreaM2 is the protocol area of every subplot. It is never derived
	// from data.
	SubplotAreaM2 float64  `toml:"subplot_area_m2"`
	NullTokens    []string `toml:"null_tokens"`
}

// Geometry controls AOI buffering.
type Geometry struct {
	PlotAreaM2 float64 `toml:"plot_area_m2"`
	Segments   int     `toml:"segments"`
}

// Imagery contains the catalog connection and the scene selection policy.
type Imagery struct {
	BaseURL                string             `toml:"base_url"`
	APIKey                 string             `toml:"api_key"`
	Collection             string             `toml:"collection"`
	Bands                  []string           `toml:"bands"`
	Year                   int                `toml:"year"`
	SeasonStart            string             `toml:"season_start"`
	SeasonEnd              string             `toml:"season_end"`
	MaxCloudCover          float64            `toml:"max_cloud_cover"`
	ScaleM                 float64            `toml:"scale_m"`
	BandScales             map[string]float64 `toml:"band_scales"`
	QueryTimeoutSeconds    int                `toml:"query_timeout_seconds"`
	DownloadTimeoutSeconds int                `toml:"download_timeout_seconds"`
	CandidateLimit         int                `toml:"candidate_limit"`
	SkipPresentBands       bool               `toml:"skip_present_bands"`
	MinFreeMiB             int                `toml:"min_free_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for agbprep.
//
// Configuration sections by subsystem:
//   - Paths: stage inputs/outputs, logs, ledger and metrics files
//   - Inventory: raw table schema, cleaning policy, subplot area
//   - Geometry: AOI target area and circle discretization
//   - Imagery: catalog service and acquisition policy
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Inventory Inventory `toml:"inventory"`
	Geometry  Geometry  `toml:"geometry"`
	Imagery   Imagery   `toml:"imagery"`
	Logging   Logging   `toml:"logging"`
}

// EnsureDirectories creates the output roots written by the pipeline. The
// input file's directory is left alone.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.AOIDir, c.Paths.ImageryDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CleanSubplotsPath is the cleaned, decomposed subplot table written by the prepare stage.
func (c *Config) CleanSubplotsPath() string {
	return filepath.Join(c.Paths.WorkDir, "subplots_clean.csv")
}

// PlotsPath is the plot aggregate table written by the aggregate stage.
func (c *Config) PlotsPath() string {
	return filepath.Join(c.Paths.WorkDir, "plots.csv")
}

// YearDir is the imagery root for the configured acquisition year.
func (c *Config) YearDir() string {
	return filepath.Join(c.Paths.ImageryDir, strconv.Itoa(c.Imagery.Year))
}

// ScaleFor returns the extract resolution for a band in meters.
func (c *Config) ScaleFor(band string) float64 {
	if scale, ok := c.Imagery.BandScales[band]; ok && scale > 0 {
		return scale
	}
	return c.Imagery.ScaleM
}
