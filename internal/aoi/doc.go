// Package aoi builds the circular plot footprints used to query and clip
// imagery, and reads and writes them as GeoJSON geometry files.
//
// A footprint is buffered in the UTM zone of the plot centroid and projected
// back to WGS84 with the same zone, so the ring is a true metric circle
// rather than a degree-space ellipse.
package aoi
