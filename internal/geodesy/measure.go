package geodesy

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the IUGG mean Earth radius.
const EarthRadiusMeters = 6371008.8

// Distance returns the great-circle distance between two lon/lat points in
// meters.
func Distance(a, b orb.Point) float64 {
	from := s2.LatLngFromDegrees(a.Lat(), a.Lon())
	to := s2.LatLngFromDegrees(b.Lat(), b.Lon())
	return from.Distance(to).Radians() * EarthRadiusMeters
}

// GeodesicArea returns the spherical area of a lon/lat ring in square meters.
// The ring may be open or closed and in either orientation.
func GeodesicArea(ring orb.Ring) float64 {
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return 0
	}
	points := make([]s2.Point, 0, len(ring))
	for _, p := range ring {
		points = append(points, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon())))
	}
	loop := s2.LoopFromPoints(points)
	loop.Normalize()
	return loop.Area() * EarthRadiusMeters * EarthRadiusMeters
}
