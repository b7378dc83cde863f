// Package acquisition drives the per-plot imagery download loop.
//
// The only control state is the imagery directory itself. A plot is complete
// when <imagery_dir>/<year>/<plot>/ holds one raster per configured band,
// named <plot>_<band>.tif. Complete plots are skipped without contacting the
// catalog, so a run can be interrupted and restarted at any point. Rasters
// are streamed to a .part file and renamed, so an interrupted download never
// counts toward completeness.
//
// Failures are isolated per band: a failed extract or a broken download
// stream is recorded and the loop moves on. Local filesystem errors abort the
// run because continuing would leave the checkpoint state inconsistent.
package acquisition
