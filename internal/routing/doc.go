// Package routing describes how one flat answer vector is partitioned into
// destination records.
//
// A Table maps each destination's display name (the literal answer value
// found in a switch column) to a half-open span of the answer vector, an
// optional presence column in the analytics sheet, and the sheet the record
// lands in. The Common span is prepended to every destination's record.
//
// Tables are static: they are built once per process from a CUE or YAML
// file, or from Default, and expose no mutation operations. Changing routing
// means redeploying configuration.
package routing
