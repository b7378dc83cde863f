package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agbprep/internal/aggregate"
	"agbprep/internal/aoi"
	"agbprep/internal/config"
)

// SampleInventory is a raw subplot table with two plots in one cluster, a
// null row and an exact duplicate.
const SampleInventory = `plot_id,lon,lat,agb,carbon
1-1-1,85.3240,27.7172,100,47
1-1-2,85.3242,27.7174,200,94
1-2-1,85.3300,27.7200,50,23
1-2-1,85.3300,27.7200,50,23
1-3-1,NA,27.7300,80,37
`

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteInventory writes header and rows as the configured raw input table.
func WriteInventory(t testing.TB, cfg *config.Config, header []string, rows ...[]string) {
	t.Helper()

	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	WriteText(t, cfg.Paths.InputCSV, b.String())
}

// WriteAOI builds and writes the geometry file for a plot centred at
// lon/lat, returning its path.
func WriteAOI(t testing.TB, cfg *config.Config, plotIdentifier string, lon, lat float64) string {
	t.Helper()

	builder, err := aoi.NewBuilder(cfg.Geometry.PlotAreaM2, cfg.Geometry.Segments, nil)
	if err != nil {
		t.Fatalf("aoi.NewBuilder: %v", err)
	}
	area, err := builder.Build(aggregate.PlotAggregate{
		PlotIdentifier: plotIdentifier,
		CentroidLon:    lon,
		CentroidLat:    lat,
		MeanAGBPerHa:   100,
		TotalAGB:       5,
		SubplotCount:   1,
	})
	if err != nil {
		t.Fatalf("build aoi %s: %v", plotIdentifier, err)
	}
	path, err := aoi.WriteFile(cfg.Paths.AOIDir, area)
	if err != nil {
		t.Fatalf("write aoi %s: %v", plotIdentifier, err)
	}
	return path
}

// WriteBytes fills path with size bytes of a repeating pattern. A size <= 0
// writes a single byte.
func WriteBytes(t testing.TB, path string, size int) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	WriteText(t, path, strings.Repeat("B", size))
}
