// Package ledger defines the range-addressed tabular storage the splice
// engine writes to, and an in-memory implementation of it.
//
// Address space, shared by every backend:
//   - Row 1 is the header (question) row. Data begins at row 2.
//   - Columns are 1-indexed. The identity is always in column 1.
//   - Record values are written from column 2 rightwards.
//
// A Book groups the destination sheets and the analytics sheet of one
// deployment. Backends may buffer writes; Flush makes every write issued so
// far durable and visible to the next read.
//
// Sheets are not safe for concurrent mutation. Callers serialize access with
// a lock (see package lock) for the whole of a splice.
package ledger
