package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateInventory(); err != nil {
		return err
	}
	if err := c.validateGeometry(); err != nil {
		return err
	}
	if err := c.validateImagery(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateInventory() error {
	inv := c.Inventory
	if inv.SubplotAreaM2 <= 0 {
		return errors.New("inventory.subplot_area_m2 must be positive")
	}
	columns := map[string]string{
		"inventory.identifier_column": inv.IdentifierColumn,
		"inventory.lon_column":        inv.LonColumn,
		"inventory.lat_column":        inv.LatColumn,
		"inventory.agb_column":        inv.AGBColumn,
	}
	seen := make(map[string]string, len(columns))
	for key, column := range columns {
		if other, dup := seen[column]; dup {
			return fmt.Errorf("%s and %s both name column %q", key, other, column)
		}
		seen[column] = key
	}
	for _, drop := range inv.DropColumns {
		if key, required := seen[drop]; required {
			return fmt.Errorf("inventory.drop_columns cannot drop required column %q (%s)", drop, key)
		}
	}
	return nil
}

func (c *Config) validateGeometry() error {
	if c.Geometry.PlotAreaM2 <= 0 {
		return errors.New("geometry.plot_area_m2 must be positive")
	}
	if c.Geometry.Segments < minSegments {
		return fmt.Errorf("geometry.segments must be at least %d", minSegments)
	}
	return nil
}

func (c *Config) validateImagery() error {
	img := c.Imagery
	if len(img.Bands) == 0 {
		return errors.New("imagery.bands must include at least one band")
	}
	if img.Year < 1972 || img.Year > 9998 {
		return fmt.Errorf("imagery.year %d is out of range", img.Year)
	}
	if img.MaxCloudCover < 0 || img.MaxCloudCover > 100 {
		return errors.New("imagery.max_cloud_cover must be between 0 and 100")
	}
	for band, scale := range img.BandScales {
		if scale <= 0 {
			return fmt.Errorf("imagery.band_scales.%s must be positive", band)
		}
	}
	if _, _, err := c.SeasonWindow(); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"imagery.query_timeout_seconds":    img.QueryTimeoutSeconds,
		"imagery.download_timeout_seconds": img.DownloadTimeoutSeconds,
		"imagery.candidate_limit":          img.CandidateLimit,
	})
}

// ValidateImageryService reports whether the catalog connection is configured.
// Only the acquisition stage requires it.
func (c *Config) ValidateImageryService() error {
	if strings.TrimSpace(c.Imagery.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = userConfigPath
		}
		return fmt.Errorf("imagery.base_url is required for acquisition. Set AGBPREP_IMAGERY_URL or edit %s (create with 'agbprep config init')", defaultPath)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
