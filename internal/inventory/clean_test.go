package inventory

import (
	"reflect"
	"testing"
)

func sampleTable() *Table {
	return &Table{
		Header: []string{"original_id", "lon", "lat", "agb", "carbon"},
		Rows: [][]string{
			{"1-1-1", "84.1", "27.5", "100", "47"},
			{"1-1-1", "84.1", "27.5", "100", "12"},
			{"1-1-2", "84.2", "27.5", "NA", "40"},
			{"1-2-1", " ", "27.6", "50", "20"},
			{"1-2-2", "84.3", "27.7", "60", ""},
			{"1-2-3", "84.3", "27.7", "70", "30"},
		},
	}
}

func TestCleanerAppliesStepsInOrder(t *testing.T) {
	cleaner := Cleaner{DropColumns: []string{"carbon", "absent"}, Nulls: NewNullSet([]string{"NA"})}
	out, report := cleaner.Clean(sampleTable())

	wantHeader := []string{"original_id", "lon", "lat", "agb"}
	if !reflect.DeepEqual(out.Header, wantHeader) {
		t.Fatalf("header = %v, want %v", out.Header, wantHeader)
	}
	// Row 5 survives because its only null is in the dropped column; row 2
	// becomes a duplicate of row 1 once carbon is gone.
	wantRows := [][]string{
		{"1-1-1", "84.1", "27.5", "100"},
		{"1-2-2", "84.3", "27.7", "60"},
		{"1-2-3", "84.3", "27.7", "70"},
	}
	if !reflect.DeepEqual(out.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", out.Rows, wantRows)
	}
	want := CleanReport{InputRows: 6, DroppedColumns: []string{"carbon"}, NullRows: 2, DuplicateRows: 1, OutputRows: 3}
	if !reflect.DeepEqual(report, want) {
		t.Fatalf("report = %+v, want %+v", report, want)
	}
}

func TestCleanerIsIdempotent(t *testing.T) {
	cleaner := Cleaner{DropColumns: []string{"carbon"}, Nulls: NewNullSet([]string{"NA"})}
	once, _ := cleaner.Clean(sampleTable())
	twice, report := cleaner.Clean(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second pass changed output: %v vs %v", once.Rows, twice.Rows)
	}
	if report.NullRows != 0 || report.DuplicateRows != 0 || len(report.DroppedColumns) != 0 {
		t.Fatalf("second pass removed data: %+v", report)
	}
}

func TestCleanerEmptyResultIsValid(t *testing.T) {
	table := &Table{Header: []string{"a"}, Rows: [][]string{{""}, {"null"}}}
	out, report := Cleaner{Nulls: NewNullSet([]string{"null"})}.Clean(table)
	if len(out.Rows) != 0 || report.OutputRows != 0 || report.NullRows != 2 {
		t.Fatalf("unexpected result %v %+v", out.Rows, report)
	}
}

func TestCleanerKeepsRowsThatOnlyLookAlikeWhenJoined(t *testing.T) {
	table := &Table{
		Header: []string{"a", "b"},
		Rows: [][]string{
			{"x\x1fy", "z"},
			{"x", "y\x1fz"},
			{"x:1", "y"},
			{"x", "1:y"},
			{"x", "y\x1fz"},
		},
	}
	out, report := Cleaner{Nulls: NewNullSet(nil)}.Clean(table)
	if report.DuplicateRows != 1 || len(out.Rows) != 4 {
		t.Fatalf("expected only the exact repeat dropped, got rows=%v report=%+v", out.Rows, report)
	}
}

