package ledger

import (
	"context"
	"errors"
)

// Address constants.
const (
	HeaderRow      = 1
	FirstDataRow   = 2
	IdentityColumn = 1
	FirstValueCol  = 2
)

// Presence markers stored in analytics flag columns.
const (
	Present = "TRUE"
	Absent  = "FALSE"
)

var (
	// ErrSheetNotFound is returned when a book has no sheet with the
	// requested name.
	ErrSheetNotFound = errors.New("ledger: sheet not found")

	// ErrInvalidAddress is returned for row or column indices outside the
	// addressable range.
	ErrInvalidAddress = errors.New("ledger: invalid cell address")
)

// Sheet is one destination record set.
type Sheet interface {
	// Name returns the sheet name.
	Name() string

	// LastRow returns the index of the last row holding any value.
	// A sheet with only its header returns HeaderRow; an entirely empty
	// sheet returns 0.
	LastRow(ctx context.Context) (int, error)

	// ReadIdentityColumn returns column 1 of the rowCount rows starting at
	// FirstDataRow. Missing cells read as "".
	ReadIdentityColumn(ctx context.Context, rowCount int) ([]string, error)

	// WriteRow writes values into row, starting at FirstValueCol.
	// The identity column is left untouched.
	WriteRow(ctx context.Context, row int, values []string) error

	// AppendRow writes values into the row after LastRow (never above
	// FirstDataRow), starting at FirstValueCol, and returns that row.
	AppendRow(ctx context.Context, values []string) (int, error)

	// WriteCell writes a single cell.
	WriteCell(ctx context.Context, row, col int, value string) error
}

// CounterSheet is a Sheet carrying the unique-applicant counter cell.
type CounterSheet interface {
	Sheet

	// ReadCounter returns the counter value. An empty cell reads as 0.
	ReadCounter(ctx context.Context) (int, error)

	// WriteCounter stores n in the counter cell.
	WriteCounter(ctx context.Context, n int) error
}

// Book is the set of sheets one deployment writes to.
type Book interface {
	// Sheet returns the destination sheet with the given name.
	Sheet(ctx context.Context, name string) (Sheet, error)

	// Analytics returns the analytics sheet.
	Analytics(ctx context.Context) (CounterSheet, error)

	// Flush makes all writes issued so far durable and visible.
	Flush(ctx context.Context) error
}

// Reloader is implemented by books that keep a private copy of shared
// storage. Reload discards the copy and reads the storage again; it is
// called with the lock held, before any sheet is read.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Initializer is implemented by books that can create missing sheets with
// a header row.
type Initializer interface {
	EnsureSheet(ctx context.Context, name string, header []string) error
}

// CheckAddress validates a 1-based row and column.
func CheckAddress(row, col int) error {
	if row < 1 || col < 1 {
		return ErrInvalidAddress
	}
	return nil
}

// DataRows returns the number of data rows below the header for a sheet
// whose last row is lastRow.
func DataRows(lastRow int) int {
	if lastRow < FirstDataRow {
		return 0
	}
	return lastRow - HeaderRow
}

// NextRow returns the row AppendRow writes to for a sheet whose last row is
// lastRow.
func NextRow(lastRow int) int {
	if lastRow < HeaderRow {
		return FirstDataRow
	}
	return lastRow + 1
}
