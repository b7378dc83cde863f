// Package history persists an audit ledger of acquisition runs in SQLite.
//
// Each run records its start and finish, the end-of-run counts, and one row
// per band outcome (downloaded, failed, skipped, no_imagery). The ledger is
// never consulted to decide what to download: plot completeness is always
// derived from the imagery directory, so deleting the ledger loses history
// but not progress.
package history
