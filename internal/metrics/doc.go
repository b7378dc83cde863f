// Package metrics records acquisition counters in Prometheus collectors and
// writes them to a node-exporter textfile at the end of each run, since the
// pipeline is a batch process with no long-lived endpoint to scrape.
package metrics
