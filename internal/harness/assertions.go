package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/splice/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes the sheet involved to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Sheet    string     // Sheet name, if any
	Rows     [][]string // Sheet rows for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Sheet != "" {
		fmt.Fprintf(&buf, "\nSheet %q:\n", e.Sheet)
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, strings.Join(row, " | "))
		}
	}

	return buf.String()
}

func assertCounter(result *Result, a Assertion) error {
	if result.Counter == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCounter,
		Expected: fmt.Sprintf("counter %d", a.Count),
		Actual:   fmt.Sprintf("counter %d", result.Counter),
	}
}

func assertRowCount(result *Result, a Assertion) error {
	rows, ok := result.Sheets[a.Sheet]
	if !ok {
		return missingSheet(a)
	}
	got := ledger.DataRows(len(rows))
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Expected: fmt.Sprintf("%d data rows", a.Count),
		Actual:   fmt.Sprintf("%d data rows", got),
		Sheet:    a.Sheet,
		Rows:     rows,
	}
}

func assertCell(result *Result, a Assertion) error {
	rows, ok := result.Sheets[a.Sheet]
	if !ok {
		return missingSheet(a)
	}
	got := cellAt(rows, a.Row, a.Column)
	if got == a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertCell,
		Expected: fmt.Sprintf("(%d,%d) = %q", a.Row, a.Column, a.Value),
		Actual:   fmt.Sprintf("(%d,%d) = %q", a.Row, a.Column, got),
		Sheet:    a.Sheet,
		Rows:     rows,
	}
}

func assertIdentityRow(result *Result, a Assertion) error {
	rows, ok := result.Sheets[a.Sheet]
	if !ok {
		return missingSheet(a)
	}
	got := cellAt(rows, a.Row, ledger.IdentityColumn)
	if got == a.Identity {
		return nil
	}
	return &AssertionError{
		Type:     AssertIdentityRow,
		Expected: fmt.Sprintf("identity %s at row %d", a.Identity, a.Row),
		Actual:   fmt.Sprintf("%q at row %d", got, a.Row),
		Sheet:    a.Sheet,
		Rows:     rows,
	}
}

func missingSheet(a Assertion) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("sheet %q", a.Sheet),
		Actual:   "sheet does not exist",
	}
}

// cellAt reads a 1-based cell from trimmed rows; missing cells are empty.
func cellAt(rows [][]string, row, col int) string {
	if row < 1 || row > len(rows) {
		return ""
	}
	r := rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCounter:
			err = assertCounter(result, assertion)
		case AssertRowCount:
			err = assertRowCount(result, assertion)
		case AssertCell:
			err = assertCell(result, assertion)
		case AssertIdentityRow:
			err = assertIdentityRow(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
