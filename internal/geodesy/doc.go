// Package geodesy provides the coordinate primitives used to build
// area-correct plot footprints: UTM zone selection, a transverse Mercator
// projection on the WGS84 ellipsoid that can be pinned to any zone, and
// geodesic distance and area measured on the sphere.
//
// The projection follows the series expansion in Snyder, "Map Projections: A
// Working Manual" (USGS PP 1395), which is accurate to well under a
// millimeter within a few degrees of the central meridian. The forward and
// inverse transforms always use the zone they were built for, so a point near
// a zone boundary round-trips through a single, consistent projection.
package geodesy
