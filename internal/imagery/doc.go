// Package imagery is the HTTP client for the imagery catalog service.
//
// The service is consumed through three calls: a scene search filtered by
// footprint, date window, and cloud cover; a per-band extract request that
// clips one scene to a region at a given scale and returns a download URL;
// and a health probe. Search results are re-ranked client-side by ascending
// cloud cover so scene selection does not depend on the service honoring
// the requested sort order.
package imagery
