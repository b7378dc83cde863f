package inventory

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agbprep/internal/fileutil"
)

// ErrMissingColumn reports a required column absent from a table header.
var ErrMissingColumn = errors.New("missing required column")

// ErrMalformedTable reports a table that cannot be read as a rectangular
// delimited file with a header.
var ErrMalformedTable = errors.New("malformed table")

// Table is an untyped header plus rows view of a delimited file.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses a comma-delimited table with a header row. Every data row
// must have as many fields as the header.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no header row", ErrMalformedTable)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedTable, err)
	}
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		header[i] = strings.TrimSpace(name)
	}
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformedTable, name)
		}
		seen[name] = struct{}{}
	}

	table := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedTable, err)
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// ReadTableFile opens path and parses it with ReadTable.
func ReadTableFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	table, err := ReadTable(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, col := range t.Header {
		if col == name {
			return i
		}
	}
	return -1
}

// Require checks that every named column is present.
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if t.Index(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// WriteTable writes the header and rows as comma-delimited text.
func WriteTable(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}

// WriteTableFile writes t to path atomically.
func WriteTableFile(path string, t *Table) error {
	var buf bytes.Buffer
	if err := WriteTable(&buf, t); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
