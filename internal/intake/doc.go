// Package intake turns submission files into splices.
//
// A submission file holds one answer vector: a JSON array (or an object
// with an "answers" array), or a CSV or XLSX responses export whose last
// row is the newest submission. ReadFile decodes any of them; Handler
// splices the result and records it; Watcher feeds a Handler from a drop
// directory.
package intake
