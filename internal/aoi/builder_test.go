package aoi

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"agbprep/internal/aggregate"
	"agbprep/internal/geodesy"
)

func plotAt(id string, lon, lat float64) aggregate.PlotAggregate {
	return aggregate.PlotAggregate{
		PlotIdentifier: id,
		CentroidLon:    lon,
		CentroidLat:    lat,
		MeanAGBPerHa:   150,
		TotalAGB:       15,
		SubplotCount:   2,
	}
}

func TestBuildAreaAcrossDeploymentExtent(t *testing.T) {
	builder, err := NewBuilder(750, 64, nil)
	if err != nil {
		t.Fatal(err)
	}
	centroids := [][2]float64{
		{80.06, 28.9}, {80.5, 26.4}, {81.0, 30.45}, {83.99, 28.0}, {84.0, 28.0},
		{84.01, 27.5}, {85.32, 27.7}, {86.9, 27.98}, {88.19, 26.4}, {88.2, 30.4},
	}
	for _, c := range centroids {
		a, err := builder.Build(plotAt("p", c[0], c[1]))
		if err != nil {
			t.Fatal(err)
		}
		area, err := MetricArea(a)
		if err != nil {
			t.Fatal(err)
		}
		if rel := math.Abs(area-750) / 750; rel > 0.01 {
			t.Fatalf("metric area at %v = %v (%.3f%% off)", c, area, rel*100)
		}
		if area > 750 {
			t.Fatalf("inscribed polygon cannot exceed the circle area, got %v", area)
		}
		if geo := geodesy.GeodesicArea(a.Ring()); math.Abs(geo-750)/750 > 0.01 {
			t.Fatalf("geodesic area at %v = %v", c, geo)
		}
	}
}

func TestBuildRingShape(t *testing.T) {
	builder, err := NewBuilder(750, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	plot := plotAt("1-1", 84.1, 27.1)
	a, err := builder.Build(plot)
	if err != nil {
		t.Fatal(err)
	}
	ring := a.Ring()
	if len(ring) != 33 {
		t.Fatalf("expected 32 vertices plus closing point, got %d", len(ring))
	}
	if !ring.Closed() {
		t.Fatal("ring must be closed")
	}
	radius := builder.Radius()
	center := orb.Point{plot.CentroidLon, plot.CentroidLat}
	for _, p := range ring[:len(ring)-1] {
		// Ground distance differs from grid distance by the UTM scale factor.
		if d := geodesy.Distance(center, p); math.Abs(d-radius)/radius > 0.005 {
			t.Fatalf("vertex %v at %v m, want about %v m", p, d, radius)
		}
	}
	if a.Properties != plot || a.PlotIdentifier != "1-1" {
		t.Fatalf("properties must be copied unmodified, got %+v", a.Properties)
	}
}

func TestBuildIsCircularNotElliptical(t *testing.T) {
	builder, err := NewBuilder(750, 64, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := builder.Build(plotAt("p", 85, 30))
	if err != nil {
		t.Fatal(err)
	}
	ring := a.Ring()
	// Vertex 0 lies east of the centroid, vertex 16 north. In degrees the
	// east offset is larger by about 1/cos(lat).
	east := ring[0][0] - 85
	north := ring[16][1] - 30
	ratio := east / north
	want := 1 / math.Cos(30*math.Pi/180)
	if math.Abs(ratio-want)/want > 0.01 {
		t.Fatalf("degree aspect ratio = %v, want about %v", ratio, want)
	}
}

func TestBuildDeterministic(t *testing.T) {
	builder, _ := NewBuilder(750, 64, nil)
	first, _ := builder.Build(plotAt("p", 84.5, 28.2))
	second, _ := builder.Build(plotAt("p", 84.5, 28.2))
	for i := range first.Ring() {
		if first.Ring()[i] != second.Ring()[i] {
			t.Fatalf("vertex %d differs between runs", i)
		}
	}
}

func TestBuildSouthernHemisphere(t *testing.T) {
	builder, _ := NewBuilder(750, 64, nil)
	a, err := builder.Build(plotAt("p", 18.4, -33.9))
	if err != nil {
		t.Fatal(err)
	}
	area, _ := MetricArea(a)
	if math.Abs(area-750)/750 > 0.01 {
		t.Fatalf("southern hemisphere area = %v", area)
	}
}

func TestNewBuilderRejectsBadParameters(t *testing.T) {
	if _, err := NewBuilder(0, 64, nil); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry for zero area, got %v", err)
	}
	if _, err := NewBuilder(750, MinSegments-1, nil); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry for %d segments, got %v", MinSegments-1, err)
	}
}

func TestBuildAreaAtMinimumSegments(t *testing.T) {
	builder, err := NewBuilder(750, MinSegments, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, lat := range []float64{-60, 0, 27.7, 70} {
		a, err := builder.Build(plotAt("1-1", 85.3, lat))
		if err != nil {
			t.Fatal(err)
		}
		area, err := MetricArea(a)
		if err != nil {
			t.Fatal(err)
		}
		if rel := math.Abs(area-750) / 750; rel > 0.01 {
			t.Fatalf("lat %v: area %.2f m2 is %.2f%% off target", lat, area, rel*100)
		}
	}
}

func TestBuildRejectsOutOfRangeCentroid(t *testing.T) {
	builder, _ := NewBuilder(750, 64, nil)
	if _, err := builder.Build(plotAt("p", 200, 10)); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}
