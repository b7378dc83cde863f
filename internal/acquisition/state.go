package acquisition

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"agbprep/internal/aoi"
)

// RasterExtension is the suffix of downloaded band files.
const RasterExtension = ".tif"

// State is the derived acquisition state of one plot.
type State string

const (
	StatePending  State = "PENDING"
	StateComplete State = "COMPLETE"
)

// PlotStatus describes what is on disk for one plot.
type PlotStatus struct {
	PlotIdentifier string
	Dir            string
	State          State
	Present        []string
	Missing        []string
}

// PlotDir returns the output directory of a plot under a year root.
func PlotDir(yearDir, plotIdentifier string) string {
	return filepath.Join(yearDir, aoi.SafeName(plotIdentifier))
}

// BandFileName returns the raster file name of one band of a plot.
func BandFileName(plotIdentifier, band string) string {
	return aoi.SafeName(plotIdentifier) + "_" + aoi.SafeName(band) + RasterExtension
}

// BandPath returns the raster path of one band of a plot.
func BandPath(yearDir, plotIdentifier, band string) string {
	return filepath.Join(PlotDir(yearDir, plotIdentifier), BandFileName(plotIdentifier, band))
}

// DetectState inspects the plot directory. A band counts as present when its
// raster is a regular file; in-flight .part files are never consulted.
func DetectState(yearDir, plotIdentifier string, bands []string) (PlotStatus, error) {
	status := PlotStatus{
		PlotIdentifier: plotIdentifier,
		Dir:            PlotDir(yearDir, plotIdentifier),
		State:          StatePending,
	}
	for _, band := range bands {
		present, err := rasterPresent(BandPath(yearDir, plotIdentifier, band))
		if err != nil {
			return PlotStatus{}, err
		}
		if present {
			status.Present = append(status.Present, band)
		} else {
			status.Missing = append(status.Missing, band)
		}
	}
	if len(bands) > 0 && len(status.Missing) == 0 {
		status.State = StateComplete
	}
	return status, nil
}

func rasterPresent(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}

// Inspect reports the state of every geometry file without contacting the
// catalog.
func Inspect(yearDir string, aoiPaths []string, bands []string) ([]PlotStatus, error) {
	statuses := make([]PlotStatus, 0, len(aoiPaths))
	for _, path := range aoiPaths {
		area, err := aoi.ReadFile(path)
		if err != nil {
			return nil, err
		}
		status, err := DetectState(yearDir, area.PlotIdentifier, bands)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
