// Package ir holds the value types shared by every splice component: the
// flattened answer vector of one form submission, the anonymous applicant
// identity derived from it, and the content fingerprint used by the
// submission log.
//
// This package imports nothing internal. All other internal packages import
// ir, so it stays the foundational layer with no circular dependencies.
//
// Key constraints:
//   - An AnswerVector is never mutated once built; slicing copies.
//   - Identity is the only applicant key that leaves this package. Answer
//     values other than the routed segments are never written anywhere.
//   - Identity and Fingerprint are pure functions of their inputs.
package ir
