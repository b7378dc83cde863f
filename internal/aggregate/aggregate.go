package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"agbprep/internal/inventory"
)

const squareMetersPerHectare = 10000

// ErrInvalidArea reports a non-positive subplot area.
var ErrInvalidArea = errors.New("subplot area must be positive")

// PlotAggregate summarizes the subplots of one inventory plot.
type PlotAggregate struct {
	PlotIdentifier string
	ClusterID      string
	PlotID         string
	CentroidLon    float64
	CentroidLat    float64
	// MeanAGBPerHa is the area-weighted mean AGB in tonnes per hectare.
	MeanAGBPerHa float64
	// TotalAGB is the biomass over the summed subplot area, in tonnes.
	TotalAGB float64
	// SubplotCount is at least 1. Plots with a single subplot carry less
	// statistical confidence; consumers may weight or filter on it.
	SubplotCount int
}

// Aggregator computes plot aggregates with a fixed per-subplot area.
type Aggregator struct {
	SubplotAreaM2 float64
	Delimiter     string
}

type group struct {
	cluster  string
	plot     string
	sumLon   float64
	sumLat   float64
	weighted float64
	areaM2   float64
	count    int
}

// Aggregate groups records by (cluster, plot). An empty input yields no
// aggregates.
func (a Aggregator) Aggregate(records []inventory.SubplotRecord) ([]PlotAggregate, error) {
	if a.SubplotAreaM2 <= 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidArea, a.SubplotAreaM2)
	}
	groups := make(map[string]*group)
	for _, rec := range records {
		cluster := NormalizeKey(rec.ClusterID)
		plot := NormalizeKey(rec.PlotID)
		key := cluster + "\x00" + plot
		g, ok := groups[key]
		if !ok {
			g = &group{cluster: cluster, plot: plot}
			groups[key] = g
		}
		area := a.SubplotAreaM2
		g.sumLon += rec.Lon
		g.sumLat += rec.Lat
		g.weighted += rec.AGB * area
		g.areaM2 += area
		g.count++
	}

	out := make([]PlotAggregate, 0, len(groups))
	for _, g := range groups {
		n := float64(g.count)
		out = append(out, PlotAggregate{
			PlotIdentifier: inventory.PlotIdentifier(g.cluster, g.plot, a.Delimiter),
			ClusterID:      g.cluster,
			PlotID:         g.plot,
			CentroidLon:    g.sumLon / n,
			CentroidLat:    g.sumLat / n,
			MeanAGBPerHa:   g.weighted / g.areaM2,
			TotalAGB:       g.weighted / squareMetersPerHectare,
			SubplotCount:   g.count,
		})
	}
	SortPlots(out)
	return out, nil
}

// NormalizeKey trims surrounding whitespace and applies NFC normalization.
func NormalizeKey(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

// SortPlots orders aggregates by cluster then plot, comparing integer
// identifiers numerically.
func SortPlots(plots []PlotAggregate) {
	sort.SliceStable(plots, func(i, j int) bool {
		if c := compareIdentifier(plots[i].ClusterID, plots[j].ClusterID); c != 0 {
			return c < 0
		}
		if c := compareIdentifier(plots[i].PlotID, plots[j].PlotID); c != 0 {
			return c < 0
		}
		return plots[i].PlotIdentifier < plots[j].PlotIdentifier
	})
}

func compareIdentifier(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return strings.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SubplotTotal returns the sum of SubplotCount over plots.
func SubplotTotal(plots []PlotAggregate) int {
	total := 0
	for _, p := range plots {
		total += p.SubplotCount
	}
	return total
}
