package inventory

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
)

// ErrInvalidValue reports a cell that cannot be converted to its typed field.
var ErrInvalidValue = errors.New("invalid value")

// SubplotRecord is one cleaned field-measured subplot.
type SubplotRecord struct {
	OriginalID string
	ClusterID  string
	PlotID     string
	SubplotID  string
	Lon        float64
	Lat        float64
	// AGB is aboveground biomass in tonnes per hectare.
	AGB float64
}

// CleanHeader is the column order of the cleaned subplot file.
var CleanHeader = []string{
	ColumnOriginalID, "lon", "lat", "agb", ColumnClusterID, ColumnPlotID, ColumnSubplotID,
}

// Columns names the numeric measurement columns of a table.
type Columns struct {
	Lon string
	Lat string
	AGB string
}

// CanonicalColumns are the measurement column names of the cleaned file.
var CanonicalColumns = Columns{Lon: "lon", Lat: "lat", AGB: "agb"}

// RowError attaches a 1-based data row and column to a conversion failure.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ToSubplotRecords converts a decomposed, cleaned table into typed records.
// Non-numeric or non-finite measurements, coordinates outside WGS84 bounds,
// and negative AGB are errors.
func ToSubplotRecords(t *Table, cols Columns) ([]SubplotRecord, error) {
	required := []string{ColumnOriginalID, ColumnClusterID, ColumnPlotID, ColumnSubplotID, cols.Lon, cols.Lat, cols.AGB}
	if err := t.Require(required...); err != nil {
		return nil, err
	}
	var (
		idIdx      = t.Index(ColumnOriginalID)
		clusterIdx = t.Index(ColumnClusterID)
		plotIdx    = t.Index(ColumnPlotID)
		subplotIdx = t.Index(ColumnSubplotID)
		lonIdx     = t.Index(cols.Lon)
		latIdx     = t.Index(cols.Lat)
		agbIdx     = t.Index(cols.AGB)
	)

	records := make([]SubplotRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		rowNum := i + 1
		lon, err := parseMeasurement(row[lonIdx], -180, 180)
		if err != nil {
			return nil, &RowError{Row: rowNum, Column: cols.Lon, Err: err}
		}
		lat, err := parseMeasurement(row[latIdx], -90, 90)
		if err != nil {
			return nil, &RowError{Row: rowNum, Column: cols.Lat, Err: err}
		}
		agb, err := parseMeasurement(row[agbIdx], 0, math.Inf(1))
		if err != nil {
			return nil, &RowError{Row: rowNum, Column: cols.AGB, Err: err}
		}
		records = append(records, SubplotRecord{
			OriginalID: row[idIdx],
			ClusterID:  row[clusterIdx],
			PlotID:     row[plotIdx],
			SubplotID:  row[subplotIdx],
			Lon:        lon,
			Lat:        lat,
			AGB:        agb,
		})
	}
	return records, nil
}

func parseMeasurement(raw string, lo, hi float64) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidValue, raw)
	}
	if value < lo || value > hi {
		return 0, fmt.Errorf("%w: %s outside [%g, %g]", ErrInvalidValue, raw, lo, hi)
	}
	return value, nil
}

// SubplotTable renders records in CleanHeader order.
func SubplotTable(records []SubplotRecord) *Table {
	table := &Table{Header: append([]string(nil), CleanHeader...), Rows: make([][]string, 0, len(records))}
	for _, rec := range records {
		table.Rows = append(table.Rows, []string{
			rec.OriginalID,
			FormatFloat(rec.Lon),
			FormatFloat(rec.Lat),
			FormatFloat(rec.AGB),
			rec.ClusterID,
			rec.PlotID,
			rec.SubplotID,
		})
	}
	return table
}

// WriteSubplots writes records as the cleaned subplot file.
func WriteSubplots(w io.Writer, records []SubplotRecord) error {
	return WriteTable(w, SubplotTable(records))
}

// WriteSubplotsFile writes records to path atomically.
func WriteSubplotsFile(path string, records []SubplotRecord) error {
	var buf bytes.Buffer
	if err := WriteSubplots(&buf, records); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// ReadSubplots parses a cleaned subplot file.
func ReadSubplots(r io.Reader) ([]SubplotRecord, error) {
	table, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	return ToSubplotRecords(table, CanonicalColumns)
}

// ReadSubplotsFile opens path and parses it with ReadSubplots.
func ReadSubplotsFile(path string) ([]SubplotRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	records, err := ReadSubplots(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// FormatFloat renders v with the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
