// Package store provides SQLite-backed storage for splice deployments that
// do not write to a workbook.
//
// One database file holds:
//   - Sheets and cells: a ledger.Book with the same row/column model as a
//     spreadsheet (row 1 header, identity in column 1)
//   - Locks: named leases that serialize splices across processes
//   - Submissions: an audit log of processed invocations, keyed by content
//     fingerprint (answers themselves are never stored)
//
// # Ordering
//
// Submissions carry a logical seq assigned at insert time. Listings order
// by seq, never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Book.Flush runs a passive WAL checkpoint.
package store
