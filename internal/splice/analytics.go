package splice

import (
	"context"
	"fmt"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/ledger"
	"github.com/roach88/splice/internal/routing"
)

// Presence describes the analytics row MarkPresence touched.
type Presence struct {
	Row int

	// New is true when the identity was first seen and the counter moved.
	New bool

	// Count is the counter value after a new identity; 0 otherwise.
	Count int
}

// Applicant is the analytics view of one submitter.
type Applicant struct {
	Identity    ir.Identity
	DisplayName string
	Contact     string
}

// MarkPresence sets the presence flag at column for the applicant.
//
// For a known identity only that one cell is written. For a new identity
// the steps run strictly in this order: the counter is incremented, a row
// seeded with the display name, contact and an Absent flag in every column
// of presenceColumns is appended, the flag at column is set Present, and the
// identity is written last.
func MarkPresence(ctx context.Context, a Applicant, column int, sheet ledger.CounterSheet, presenceColumns []int) (Presence, error) {
	row, found, err := findIdentity(ctx, a.Identity, sheet)
	if err != nil {
		return Presence{}, err
	}

	if found {
		if err := sheet.WriteCell(ctx, row, column, ledger.Present); err != nil {
			return Presence{}, fmt.Errorf("mark presence at (%d,%d): %w", row, column, err)
		}
		return Presence{Row: row}, nil
	}

	count, err := sheet.ReadCounter(ctx)
	if err != nil {
		return Presence{}, fmt.Errorf("read counter: %w", err)
	}
	count++
	if err := sheet.WriteCounter(ctx, count); err != nil {
		return Presence{}, fmt.Errorf("write counter: %w", err)
	}

	row, err = sheet.AppendRow(ctx, SeedRow(a.DisplayName, a.Contact, presenceColumns))
	if err != nil {
		return Presence{}, fmt.Errorf("seed analytics row: %w", err)
	}
	if err := sheet.WriteCell(ctx, row, column, ledger.Present); err != nil {
		return Presence{}, fmt.Errorf("mark presence at (%d,%d): %w", row, column, err)
	}
	if err := sheet.WriteCell(ctx, row, ledger.IdentityColumn, a.Identity.String()); err != nil {
		return Presence{}, fmt.Errorf("write identity to row %d: %w", row, err)
	}

	return Presence{Row: row, New: true, Count: count}, nil
}

// SeedRow builds the values (from column 2) of a fresh analytics row.
// Columns between the contact and a presence column that carry no flag
// are left empty.
func SeedRow(displayName, contact string, presenceColumns []int) []string {
	width := routing.ContactColumn - ledger.FirstValueCol + 1
	for _, c := range presenceColumns {
		if w := c - ledger.FirstValueCol + 1; w > width {
			width = w
		}
	}

	row := make([]string, width)
	row[routing.DisplayNameColumn-ledger.FirstValueCol] = displayName
	row[routing.ContactColumn-ledger.FirstValueCol] = contact
	for _, c := range presenceColumns {
		if c >= routing.FirstPresenceColumn {
			row[c-ledger.FirstValueCol] = ledger.Absent
		}
	}
	return row
}
