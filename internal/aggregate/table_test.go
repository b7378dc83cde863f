package aggregate

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestPlotsFileRoundTrip(t *testing.T) {
	plots := []PlotAggregate{
		{PlotIdentifier: "1-1", CentroidLon: 84.1, CentroidLat: 27.1, MeanAGBPerHa: 150, TotalAGB: 15, SubplotCount: 2},
		{PlotIdentifier: "1-2", CentroidLon: 85, CentroidLat: 28, MeanAGBPerHa: 50, TotalAGB: 2.5, SubplotCount: 1},
	}
	var buf bytes.Buffer
	if err := WritePlots(&buf, plots); err != nil {
		t.Fatal(err)
	}
	want := "plot_identifier,centroid_lon,centroid_lat,mean_agb_per_ha,total_agb,subplot_count\n" +
		"1-1,84.1,27.1,150,15,2\n" +
		"1-2,85,28,50,2.5,1\n"
	if buf.String() != want {
		t.Fatalf("unexpected table:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "plots.csv")
	if err := WritePlotsFile(path, plots); err != nil {
		t.Fatal(err)
	}
	back, err := ReadPlotsFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 2 || back[1] != plots[1] {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestReadPlotsRejectsBadCount(t *testing.T) {
	input := strings.Join(PlotsHeader, ",") + "\n1-1,84,27,10,1,0\n"
	if _, err := ReadPlots(strings.NewReader(input)); !errors.Is(err, ErrInvalidPlot) {
		t.Fatalf("expected ErrInvalidPlot, got %v", err)
	}
}
