// Package pipeline orchestrates the four stages: prepare (decompose and clean
// the raw table), aggregate (subplots to plots), aoi (plot geometries), and
// acquire (imagery downloads).
//
// Each stage reads the previous stage's file from the configured work or AOI
// directory, so any stage can be re-run on its own. RunAll chains them under
// one run id.
package pipeline
