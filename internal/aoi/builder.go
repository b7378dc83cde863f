package aoi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"agbprep/internal/aggregate"
	"agbprep/internal/geodesy"
	"agbprep/internal/logging"
)

// MinSegments is the smallest circle discretization accepted. An inscribed
// N-gon covers N*sin(2*pi/N)/(2*pi) of the circle, so 32 vertices keep the
// footprint within 0.65% of the target area.
const MinSegments = 32

// ErrInvalidGeometry reports unusable buffering parameters or coordinates.
var ErrInvalidGeometry = errors.New("invalid geometry")

// AOI is one plot footprint with the plot aggregate it came from.
type AOI struct {
	PlotIdentifier string
	Polygon        orb.Polygon
	Properties     aggregate.PlotAggregate
}

// Ring returns the outer ring of the footprint.
func (a AOI) Ring() orb.Ring {
	if len(a.Polygon) == 0 {
		return nil
	}
	return a.Polygon[0]
}

// Builder buffers plot centroids into circular polygons of a fixed area.
type Builder struct {
	AreaM2   float64
	Segments int
	Logger   *slog.Logger
}

// NewBuilder returns a Builder after checking its parameters.
func NewBuilder(areaM2 float64, segments int, logger *slog.Logger) (*Builder, error) {
	if areaM2 <= 0 || math.IsNaN(areaM2) || math.IsInf(areaM2, 0) {
		return nil, fmt.Errorf("%w: area %g", ErrInvalidGeometry, areaM2)
	}
	if segments < MinSegments {
		return nil, fmt.Errorf("%w: %d segments, need at least %d", ErrInvalidGeometry, segments, MinSegments)
	}
	return &Builder{AreaM2: areaM2, Segments: segments, Logger: logging.NewComponentLogger(logger, "aoi")}, nil
}

// Radius returns the circle radius in meters for the target area.
func (b *Builder) Radius() float64 {
	return math.Sqrt(b.AreaM2 / math.Pi)
}

// Build returns the footprint for plot.
func (b *Builder) Build(plot aggregate.PlotAggregate) (AOI, error) {
	lon, lat := plot.CentroidLon, plot.CentroidLat
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 || math.IsNaN(lon) || math.IsNaN(lat) {
		return AOI{}, fmt.Errorf("%w: centroid (%g, %g) for plot %s", ErrInvalidGeometry, lon, lat, plot.PlotIdentifier)
	}
	zone := geodesy.ZoneFor(lon, lat)
	proj, err := geodesy.NewUTM(zone)
	if err != nil {
		return AOI{}, err
	}
	cx, cy := proj.Forward(lon, lat)
	radius := b.Radius()

	ring := make(orb.Ring, 0, b.Segments+1)
	for i := 0; i < b.Segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(b.Segments)
		vlon, vlat := proj.Inverse(cx+radius*math.Cos(theta), cy+radius*math.Sin(theta))
		ring = append(ring, orb.Point{vlon, vlat})
	}
	ring = append(ring, ring[0])

	out := AOI{
		PlotIdentifier: plot.PlotIdentifier,
		Polygon:        orb.Polygon{ring},
		Properties:     plot,
	}
	if b.Logger != nil && b.Logger.Enabled(context.Background(), slog.LevelDebug) {
		metric, _ := MetricArea(out)
		b.Logger.Debug("aoi built",
			logging.String(logging.FieldPlot, plot.PlotIdentifier),
			logging.Int("epsg", zone.EPSG()),
			logging.Float64("radius_m", radius),
			logging.Float64("metric_area_m2", metric),
			logging.Float64("geodesic_area_m2", geodesy.GeodesicArea(ring)),
		)
	}
	return out, nil
}

// MetricArea projects the footprint into the UTM zone of its plot centroid
// and returns its planar area in square meters.
func MetricArea(a AOI) (float64, error) {
	ring := a.Ring()
	if len(ring) < 4 {
		return 0, fmt.Errorf("%w: ring has %d points", ErrInvalidGeometry, len(ring))
	}
	proj, err := geodesy.NewUTM(geodesy.ZoneFor(a.Properties.CentroidLon, a.Properties.CentroidLat))
	if err != nil {
		return 0, err
	}
	projected := make(orb.Ring, 0, len(ring))
	for _, p := range ring {
		x, y := proj.Forward(p.Lon(), p.Lat())
		projected = append(projected, orb.Point{x, y})
	}
	return math.Abs(planar.Area(projected)), nil
}

