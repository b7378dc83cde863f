package inventory

import (
	"slices"
	"strconv"
	"strings"
)

// NullSet recognizes cell values treated as missing. A blank cell is always
// missing.
type NullSet map[string]struct{}

// NewNullSet builds a NullSet from the configured tokens.
func NewNullSet(tokens []string) NullSet {
	set := make(NullSet, len(tokens))
	for _, token := range tokens {
		set[strings.TrimSpace(token)] = struct{}{}
	}
	return set
}

// IsNull reports whether value is missing.
func (n NullSet) IsNull(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	_, ok := n[trimmed]
	return ok
}

// CleanReport counts what each cleaning step removed.
type CleanReport struct {
	InputRows      int
	DroppedColumns []string
	NullRows       int
	DuplicateRows  int
	OutputRows     int
}

// Cleaner applies the no-imputation cleaning policy.
type Cleaner struct {
	DropColumns []string
	Nulls       NullSet
}

// Clean drops the configured columns, then every row with a missing value in
// any remaining column, then exact duplicate rows keeping the first
// occurrence. Columns listed for dropping but absent are ignored. An empty
// result is valid.
func (c Cleaner) Clean(t *Table) (*Table, CleanReport) {
	report := CleanReport{InputRows: len(t.Rows)}

	keep := make([]int, 0, len(t.Header))
	header := make([]string, 0, len(t.Header))
	for i, name := range t.Header {
		if slices.Contains(c.DropColumns, name) {
			report.DroppedColumns = append(report.DroppedColumns, name)
			continue
		}
		keep = append(keep, i)
		header = append(header, name)
	}

	out := &Table{Header: header, Rows: make([][]string, 0, len(t.Rows))}
	seen := make(map[string]struct{}, len(t.Rows))
rows:
	for _, row := range t.Rows {
		projected := make([]string, len(keep))
		for j, idx := range keep {
			if c.Nulls.IsNull(row[idx]) {
				report.NullRows++
				continue rows
			}
			projected[j] = row[idx]
		}
		key := rowKey(projected)
		if _, dup := seen[key]; dup {
			report.DuplicateRows++
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, projected)
	}
	report.OutputRows = len(out.Rows)
	return out, report
}

// rowKey encodes cells so that distinct rows never share a key.
func rowKey(cells []string) string {
	var b strings.Builder
	for _, cell := range cells {
		b.WriteString(strconv.Itoa(len(cell)))
		b.WriteByte(':')
		b.WriteString(cell)
	}
	return b.String()
}
