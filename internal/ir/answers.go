package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrShortAnswers is returned when an answer vector does not reach a column
// the routing table addresses.
var ErrShortAnswers = errors.New("answer vector shorter than routing table width")

// ListSeparator joins array-valued cells (checkbox questions) into one cell.
const ListSeparator = ", "

// AnswerVector is one submission's answers, one cell per form question,
// 0-indexed. Build it with Flatten or NewAnswerVector; treat it as
// read-only afterwards.
type AnswerVector []string

// NewAnswerVector copies cells into a new AnswerVector.
func NewAnswerVector(cells ...string) AnswerVector {
	v := make(AnswerVector, len(cells))
	copy(v, cells)
	return v
}

// Flatten converts raw cell values into an AnswerVector.
//
// Array-valued cells are joined with ListSeparator. Numbers use their
// shortest decimal form, booleans "true"/"false", times RFC 3339 and nil
// the empty string.
func Flatten(raw []any) AnswerVector {
	v := make(AnswerVector, len(raw))
	for i, cell := range raw {
		v[i] = flattenCell(cell)
	}
	return v
}

func flattenCell(cell any) string {
	switch val := cell.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ListSeparator)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = flattenCell(elem)
		}
		return strings.Join(parts, ListSeparator)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// At returns the answer at index i, or "" when i is out of range.
func (v AnswerVector) At(i int) string {
	if i < 0 || i >= len(v) {
		return ""
	}
	return v[i]
}

// Slice returns a copy of the half-open range [start, end).
// Bounds are clamped to the vector, so an out-of-range span yields fewer
// (possibly zero) cells rather than a panic.
func (v AnswerVector) Slice(start, end int) []string {
	if start < 0 {
		start = 0
	}
	if end > len(v) {
		end = len(v)
	}
	if start >= end {
		return []string{}
	}
	out := make([]string, end-start)
	copy(out, v[start:end])
	return out
}

// Require returns ErrShortAnswers if the vector has fewer than width cells.
func (v AnswerVector) Require(width int) error {
	if len(v) < width {
		return fmt.Errorf("%w: have %d cells, need %d", ErrShortAnswers, len(v), width)
	}
	return nil
}
