package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeInventory()
	c.normalizeGeometry()
	c.normalizeImagery()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputCSV, err = expandPath(strings.TrimSpace(c.Paths.InputCSV)); err != nil {
		return fmt.Errorf("paths.input_csv: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AOIDir) == "" {
		c.Paths.AOIDir = defaultAOIDir
	}
	if c.Paths.AOIDir, err = expandPath(c.Paths.AOIDir); err != nil {
		return fmt.Errorf("paths.aoi_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImageryDir) == "" {
		c.Paths.ImageryDir = defaultImageryDir
	}
	if c.Paths.ImageryDir, err = expandPath(c.Paths.ImageryDir); err != nil {
		return fmt.Errorf("paths.imagery_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = filepath.Join(c.Paths.LogDir, defaultHistoryDBName)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	if c.Paths.MetricsFile, err = expandPath(strings.TrimSpace(c.Paths.MetricsFile)); err != nil {
		return fmt.Errorf("paths.metrics_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeInventory() {
	inv := &c.Inventory
	inv.IdentifierColumn = strings.TrimSpace(inv.IdentifierColumn)
	if inv.IdentifierColumn == "" {
		inv.IdentifierColumn = defaultIdentifierColumn
	}
	inv.LonColumn = strings.TrimSpace(inv.LonColumn)
	if inv.LonColumn == "" {
		inv.LonColumn = defaultLonColumn
	}
	inv.LatColumn = strings.TrimSpace(inv.LatColumn)
	if inv.LatColumn == "" {
		inv.LatColumn = defaultLatColumn
	}
	inv.AGBColumn = strings.TrimSpace(inv.AGBColumn)
	if inv.AGBColumn == "" {
		inv.AGBColumn = defaultAGBColumn
	}
	// The delimiter is not trimmed: a space delimiter is legitimate.
	if inv.IdentifierDelimiter == "" {
		inv.IdentifierDelimiter = defaultIdentifierDelimiter
	}
	inv.DropColumns = dedupeTrimmed(inv.DropColumns, false)
	if inv.NullTokens == nil {
		inv.NullTokens = append([]string(nil), defaultNullTokens...)
	}
}

func (c *Config) normalizeGeometry() {
	if c.Geometry.Segments <= 0 {
		c.Geometry.Segments = defaultSegments
	}
}

func (c *Config) normalizeImagery() {
	img := &c.Imagery
	img.BaseURL = strings.TrimRight(strings.TrimSpace(img.BaseURL), "/")
	if img.BaseURL == "" {
		if value, ok := os.LookupEnv("AGBPREP_IMAGERY_URL"); ok {
			img.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	img.APIKey = strings.TrimSpace(img.APIKey)
	if img.APIKey == "" {
		if value, ok := os.LookupEnv("AGBPREP_IMAGERY_API_KEY"); ok {
			img.APIKey = strings.TrimSpace(value)
		}
	}
	img.Collection = strings.TrimSpace(img.Collection)
	if img.Collection == "" {
		img.Collection = defaultCollection
	}
	img.Bands = dedupeTrimmed(img.Bands, true)
	if len(img.Bands) == 0 {
		img.Bands = append([]string(nil), defaultBands...)
	}
	if len(img.BandScales) > 0 {
		scales := make(map[string]float64, len(img.BandScales))
		for band, scale := range img.BandScales {
			scales[strings.ToUpper(strings.TrimSpace(band))] = scale
		}
		img.BandScales = scales
	}
	img.SeasonStart = strings.TrimSpace(img.SeasonStart)
	if img.SeasonStart == "" {
		img.SeasonStart = defaultSeasonStart
	}
	img.SeasonEnd = strings.TrimSpace(img.SeasonEnd)
	if img.SeasonEnd == "" {
		img.SeasonEnd = defaultSeasonEnd
	}
	if img.ScaleM <= 0 {
		img.ScaleM = defaultScaleM
	}
	if img.QueryTimeoutSeconds <= 0 {
		img.QueryTimeoutSeconds = defaultQueryTimeoutSeconds
	}
	if img.DownloadTimeoutSeconds <= 0 {
		img.DownloadTimeoutSeconds = defaultDownloadTimeoutSeconds
	}
	if img.CandidateLimit <= 0 {
		img.CandidateLimit = defaultCandidateLimit
	}
	if img.MinFreeMiB < 0 {
		img.MinFreeMiB = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func dedupeTrimmed(values []string, upper bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if upper {
			normalized = strings.ToUpper(normalized)
		}
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
