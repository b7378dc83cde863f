// Package config loads, normalizes, and validates agbprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AGBPREP_IMAGERY_URL and AGBPREP_IMAGERY_API_KEY. The Config type centralizes
// every knob the pipeline stages need: input/output roots, the inventory
// schema, the fixed subplot and plot areas, and the imagery acquisition policy.
//
// Always obtain settings through this package so stages receive sanitized
// paths, canonical band lists, and clear validation errors instead of reading
// process-wide constants.
package config
