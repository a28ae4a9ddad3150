// Package splice implements the submission-splicing engine.
//
// One call to Coordinator.Splice handles one form submission:
//
//	Idle -> AcquiringLock -> Splicing -> Releasing -> Done
//
// Identity:
// The applicant identity is derived from two answer fields (see
// routing.Fields). It is the only key written to destination sheets and
// the analytics sheet; redelivering a submission upserts the same rows.
//
// Locking:
// A single named lock covers the whole splice across every sheet. Each
// attempt waits a bounded time; a failed attempt is logged with the total
// wait so far and retried after a capped backoff, forever. Only a cancelled
// context stops acquisition. Once Splicing begins it runs to completion and
// the lock is released on every path, including storage errors and panics.
//
// Splicing:
// The Common span is sliced once. For every switch index in table order,
// the named destination (if any) gets Common ++ its own span upserted by
// identity, then its presence flag set in the analytics sheet. The book is
// flushed after every switch index so a crash mid-loop loses at most one
// destination's writes.
//
// Counter:
// The unique-applicant counter is incremented only when an identity is
// first seen in the analytics sheet, never per destination.
package splice
