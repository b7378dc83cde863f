package inventory

import (
	"fmt"
)

// Column names added or renamed by DecomposeTable.
const (
	ColumnOriginalID = "original_id"
	ColumnClusterID  = "cluster_id"
	ColumnPlotID     = "plot_id"
	ColumnSubplotID  = "subplot_id"
)

// DecomposeTable renames the identifier column to original_id and appends
// cluster_id, plot_id, and subplot_id columns. Rows whose identifier is null
// get empty components and are left for the Cleaner to drop. A non-null
// identifier that does not decompose fails the whole table, naming the
// 1-based data row.
func DecomposeTable(t *Table, column, delim string, nulls NullSet) (*Table, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
	}
	for _, name := range []string{ColumnOriginalID, ColumnClusterID, ColumnPlotID, ColumnSubplotID} {
		if pos := t.Index(name); pos >= 0 && pos != idx {
			return nil, fmt.Errorf("%w: column %q already present", ErrMalformedTable, name)
		}
	}

	header := make([]string, 0, len(t.Header)+3)
	header = append(header, t.Header...)
	header[idx] = ColumnOriginalID
	header = append(header, ColumnClusterID, ColumnPlotID, ColumnSubplotID)

	out := &Table{Header: header, Rows: make([][]string, 0, len(t.Rows))}
	for i, row := range t.Rows {
		next := make([]string, 0, len(row)+3)
		next = append(next, row...)
		raw := row[idx]
		if nulls.IsNull(raw) {
			next = append(next, "", "", "")
			out.Rows = append(out.Rows, next)
			continue
		}
		id, err := Decompose(raw, delim)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		next = append(next, id.Cluster, id.Plot, id.Subplot)
		out.Rows = append(out.Rows, next)
	}
	return out, nil
}
