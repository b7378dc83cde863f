// Package services defines shared utilities consumed by the pipeline stages
// and the imagery catalog integration.
//
// Key responsibilities:
//   - Context helpers that stamp the run identifier, stage name, plot, and
//     band for logging and the run ledger.
//   - Structured error markers plus the Wrap helper, and IsFatal, which
//     separates run-aborting failures (structural data, configuration,
//     filesystem) from failures recovered at one plot or one band.
//
// Use these helpers when wiring new stage logic so error handling stays
// uniform across the pipeline.
package services
