// Package inventory turns the raw field-inventory table into typed subplot
// records.
//
// The raw table is read once at the boundary (ReadTable) where the required
// columns are checked. DecomposeTable splits the composite identifier into
// cluster, plot, and subplot columns while keeping the original string as
// original_id. Cleaner removes unused columns, incomplete rows, and exact
// duplicates and reports how many rows each step removed. ToSubplotRecords
// then parses the numeric fields into SubplotRecord values, which are
// persisted as the cleaned subplot file consumed by the aggregate stage.
package inventory
