// Package preflight provides readiness checks for the filesystem roots and
// the imagery catalog that agbprep depends on.
//
// These checks run in two contexts:
//   - The acquire stage calls Gate before touching the catalog. A failed
//     directory or free-space check aborts the run.
//   - The CLI "agbprep doctor" command runs RunAll and renders every result.
package preflight
