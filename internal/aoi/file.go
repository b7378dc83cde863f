package aoi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"agbprep/internal/aggregate"
	"agbprep/internal/fileutil"
)

// FileExtension is the suffix of geometry files.
const FileExtension = ".geojson"

// ErrInvalidFile reports a geometry file without a usable polygon feature.
var ErrInvalidFile = errors.New("invalid geometry file")

// SafeName maps a plot identifier to a filesystem-safe name. Characters
// outside [A-Za-z0-9._-] become underscores.
func SafeName(plotIdentifier string) string {
	var b strings.Builder
	b.Grow(len(plotIdentifier))
	for _, r := range plotIdentifier {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || name == "." || name == ".." {
		name = strings.Repeat("_", max(len(name), 1))
	}
	return name
}

// FileName returns the geometry file name for a plot.
func FileName(plotIdentifier string) string {
	return SafeName(plotIdentifier) + FileExtension
}

// Properties renders the plot aggregate fields as feature properties.
func Properties(p aggregate.PlotAggregate) geojson.Properties {
	return geojson.Properties{
		aggregate.ColumnPlotIdentifier: p.PlotIdentifier,
		aggregate.ColumnCentroidLon:    p.CentroidLon,
		aggregate.ColumnCentroidLat:    p.CentroidLat,
		aggregate.ColumnMeanAGBPerHa:   p.MeanAGBPerHa,
		aggregate.ColumnTotalAGB:       p.TotalAGB,
		aggregate.ColumnSubplotCount:   p.SubplotCount,
	}
}

// Marshal encodes a footprint as a FeatureCollection with one polygon feature.
func Marshal(a AOI) ([]byte, error) {
	feature := geojson.NewFeature(a.Polygon)
	feature.Properties = Properties(a.Properties)
	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	return json.MarshalIndent(fc, "", "  ")
}

// WriteFile writes the footprint to dir and returns its path.
func WriteFile(dir string, a AOI) (string, error) {
	data, err := Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode geometry for %s: %w", a.PlotIdentifier, err)
	}
	path := filepath.Join(dir, FileName(a.PlotIdentifier))
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	Type       string         `json:"type"`
	Geometry   *rawGeometry   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Unmarshal decodes a geometry file. Positions carrying an elevation or any
// further ordinate are reduced to longitude and latitude.
func Unmarshal(data []byte) (AOI, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return AOI{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	var feature *rawFeature
	switch fc.Type {
	case "FeatureCollection":
		for i := range fc.Features {
			if g := fc.Features[i].Geometry; g != nil && g.Type == "Polygon" {
				feature = &fc.Features[i]
				break
			}
		}
	case "Feature":
		var single rawFeature
		if err := json.Unmarshal(data, &single); err != nil {
			return AOI{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
		if single.Geometry != nil && single.Geometry.Type == "Polygon" {
			feature = &single
		}
	}
	if feature == nil {
		return AOI{}, fmt.Errorf("%w: no polygon feature", ErrInvalidFile)
	}

	var coords [][][]float64
	if err := json.Unmarshal(feature.Geometry.Coordinates, &coords); err != nil {
		return AOI{}, fmt.Errorf("%w: coordinates: %w", ErrInvalidFile, err)
	}
	polygon, err := flatten(coords)
	if err != nil {
		return AOI{}, err
	}
	props, err := plotFromProperties(feature.Properties)
	if err != nil {
		return AOI{}, err
	}
	return AOI{PlotIdentifier: props.PlotIdentifier, Polygon: polygon, Properties: props}, nil
}

func flatten(coords [][][]float64) (orb.Polygon, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", ErrInvalidFile)
	}
	polygon := make(orb.Polygon, 0, len(coords))
	for i, rawRing := range coords {
		if len(rawRing) < 4 {
			return nil, fmt.Errorf("%w: ring %d has %d positions", ErrInvalidFile, i, len(rawRing))
		}
		ring := make(orb.Ring, 0, len(rawRing))
		for _, pos := range rawRing {
			if len(pos) < 2 {
				return nil, fmt.Errorf("%w: position with %d ordinates", ErrInvalidFile, len(pos))
			}
			ring = append(ring, orb.Point{pos[0], pos[1]})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		polygon = append(polygon, ring)
	}
	return polygon, nil
}

func plotFromProperties(props map[string]any) (aggregate.PlotAggregate, error) {
	id, _ := props[aggregate.ColumnPlotIdentifier].(string)
	if strings.TrimSpace(id) == "" {
		return aggregate.PlotAggregate{}, fmt.Errorf("%w: missing %s property", ErrInvalidFile, aggregate.ColumnPlotIdentifier)
	}
	number := func(key string) float64 {
		v, _ := props[key].(float64)
		return v
	}
	return aggregate.PlotAggregate{
		PlotIdentifier: id,
		CentroidLon:    number(aggregate.ColumnCentroidLon),
		CentroidLat:    number(aggregate.ColumnCentroidLat),
		MeanAGBPerHa:   number(aggregate.ColumnMeanAGBPerHa),
		TotalAGB:       number(aggregate.ColumnTotalAGB),
		SubplotCount:   int(number(aggregate.ColumnSubplotCount)),
	}, nil
}

// ReadFile loads one geometry file.
func ReadFile(path string) (AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AOI{}, err
	}
	a, err := Unmarshal(data)
	if err != nil {
		return AOI{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// List returns the geometry files in dir sorted by name. A missing dir yields
// an empty list.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
