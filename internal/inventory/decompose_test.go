package inventory

import (
	"errors"
	"strings"
	"testing"
)

func TestDecomposeTableRenamesIdentifierColumn(t *testing.T) {
	raw := &Table{
		Header: []string{"plot_id", "lon", "lat", "agb", "carbon"},
		Rows: [][]string{
			{"1-1-1", "84.1", "27.5", "100", "47"},
			{"", "84.2", "27.6", "90", "40"},
		},
	}
	out, err := DecomposeTable(raw, "plot_id", "-", NewNullSet(nil))
	if err != nil {
		t.Fatal(err)
	}
	wantHeader := "original_id,lon,lat,agb,carbon,cluster_id,plot_id,subplot_id"
	if got := strings.Join(out.Header, ","); got != wantHeader {
		t.Fatalf("header = %s, want %s", got, wantHeader)
	}
	if got := strings.Join(out.Rows[0], ","); got != "1-1-1,84.1,27.5,100,47,1,1,1" {
		t.Fatalf("unexpected first row %s", got)
	}
	if got := out.Rows[1][5:]; got[0] != "" || got[1] != "" || got[2] != "" {
		t.Fatalf("null identifier should yield empty components, got %q", got)
	}
	if raw.Header[0] != "plot_id" {
		t.Fatal("input table must not be modified")
	}
}

func TestDecomposeTableNamesMalformedRow(t *testing.T) {
	raw := &Table{
		Header: []string{"plot_id", "agb"},
		Rows:   [][]string{{"1-1-1", "1"}, {"1-1-2", "2"}, {"7-7", "3"}},
	}
	_, err := DecomposeTable(raw, "plot_id", "-", NewNullSet(nil))
	if !errors.Is(err, ErrMalformedIdentifier) {
		t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 3") {
		t.Fatalf("expected row number in error, got %q", err.Error())
	}
}

func TestDecomposeTableRejectsBlankComponent(t *testing.T) {
	raw := &Table{
		Header: []string{"plot_id", "agb"},
		Rows:   [][]string{{"1-1-1", "1"}, {"1- -1", "2"}},
	}
	_, err := DecomposeTable(raw, "plot_id", "-", NewNullSet(nil))
	if !errors.Is(err, ErrMalformedIdentifier) {
		t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("expected row number in error, got %q", err.Error())
	}
}

func TestDecomposeTableMissingColumn(t *testing.T) {
	raw := &Table{Header: []string{"id"}}
	if _, err := DecomposeTable(raw, "plot_id", "-", nil); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestDecomposeTableRejectsColumnCollision(t *testing.T) {
	raw := &Table{Header: []string{"id", "cluster_id"}}
	if _, err := DecomposeTable(raw, "id", "-", nil); !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("expected ErrMalformedTable, got %v", err)
	}
}
