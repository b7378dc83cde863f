package aggregate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"agbprep/internal/fileutil"
	"agbprep/internal/inventory"
)

// Column names of the plot table.
const (
	ColumnPlotIdentifier = "plot_identifier"
	ColumnCentroidLon    = "centroid_lon"
	ColumnCentroidLat    = "centroid_lat"
	ColumnMeanAGBPerHa   = "mean_agb_per_ha"
	ColumnTotalAGB       = "total_agb"
	ColumnSubplotCount   = "subplot_count"
)

// PlotsHeader is the column order of the plot table.
var PlotsHeader = []string{
	ColumnPlotIdentifier, ColumnCentroidLon, ColumnCentroidLat, ColumnMeanAGBPerHa, ColumnTotalAGB, ColumnSubplotCount,
}

// ErrInvalidPlot reports a plot table row that fails to parse.
var ErrInvalidPlot = errors.New("invalid plot row")

// WritePlots writes plots as the plot table.
func WritePlots(w io.Writer, plots []PlotAggregate) error {
	table := &inventory.Table{Header: append([]string(nil), PlotsHeader...), Rows: make([][]string, 0, len(plots))}
	for _, p := range plots {
		table.Rows = append(table.Rows, []string{
			p.PlotIdentifier,
			inventory.FormatFloat(p.CentroidLon),
			inventory.FormatFloat(p.CentroidLat),
			inventory.FormatFloat(p.MeanAGBPerHa),
			inventory.FormatFloat(p.TotalAGB),
			strconv.Itoa(p.SubplotCount),
		})
	}
	return inventory.WriteTable(w, table)
}

// WritePlotsFile writes plots to path atomically.
func WritePlotsFile(path string, plots []PlotAggregate) error {
	var buf bytes.Buffer
	if err := WritePlots(&buf, plots); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// ReadPlots parses a plot table. ClusterID and PlotID are not stored in the
// table and are left empty.
func ReadPlots(r io.Reader) ([]PlotAggregate, error) {
	table, err := inventory.ReadTable(r)
	if err != nil {
		return nil, err
	}
	if err := table.Require(PlotsHeader...); err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(PlotsHeader))
	for _, name := range PlotsHeader {
		idx[name] = table.Index(name)
	}

	plots := make([]PlotAggregate, 0, table.Len())
	for i, row := range table.Rows {
		id := strings.TrimSpace(row[idx[ColumnPlotIdentifier]])
		if id == "" {
			return nil, fmt.Errorf("%w: row %d: empty %s", ErrInvalidPlot, i+1, ColumnPlotIdentifier)
		}
		var values [4]float64
		for j, name := range []string{ColumnCentroidLon, ColumnCentroidLat, ColumnMeanAGBPerHa, ColumnTotalAGB} {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx[name]]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d: %s %q", ErrInvalidPlot, i+1, name, row[idx[name]])
			}
			values[j] = v
		}
		count, err := strconv.Atoi(strings.TrimSpace(row[idx[ColumnSubplotCount]]))
		if err != nil || count < 1 {
			return nil, fmt.Errorf("%w: row %d: %s %q", ErrInvalidPlot, i+1, ColumnSubplotCount, row[idx[ColumnSubplotCount]])
		}
		plots = append(plots, PlotAggregate{
			PlotIdentifier: id,
			CentroidLon:    values[0],
			CentroidLat:    values[1],
			MeanAGBPerHa:   values[2],
			TotalAGB:       values[3],
			SubplotCount:   count,
		})
	}
	return plots, nil
}

// ReadPlotsFile opens path and parses it with ReadPlots.
func ReadPlotsFile(path string) ([]PlotAggregate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	plots, err := ReadPlots(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plots, nil
}
