// Command agbprep prepares forest inventory plots for biomass modelling.
//
// The stages run individually (prepare, aggregate, aoi, acquire) or chained
// with "agbprep run". Each stage reads the previous stage's output from the
// directories named in the configuration file, so any stage can be re-run
// after fixing its input. "agbprep status" shows which plots still need
// imagery without contacting the catalog, "agbprep history" lists past
// acquisition runs, and "agbprep doctor" checks directories, free space,
// and catalog reachability.
package main
