// Package aggregate groups cleaned subplot records into plot-level biomass
// estimates and persists them as the plot table.
//
// Grouping keys are NFC-normalized and trimmed so identifiers that differ only
// by incidental whitespace or Unicode composition collapse to one plot. Output
// is sorted by cluster then plot with numeric-aware comparison, so identical
// input always yields an identical plot table.
package aggregate
