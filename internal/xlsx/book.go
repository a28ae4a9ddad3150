// Package xlsx stores destination sheets and the analytics sheet in an
// Excel workbook.
//
// The workbook is held in memory while open. Flush saves it to disk, so
// each switch iteration of a splice leaves a complete file behind. Other
// processes may save the same file between splices; Reload picks up their
// writes and must run under the splice lock before the copy is read.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/splice/internal/ledger"
)

// DefaultCounterCell is where the unique-applicant counter lives in the
// analytics sheet: header row, clear of the identity, name, contact and
// presence columns.
const DefaultCounterCell = "N1"

// defaultSheet is the sheet excelize creates in a new workbook.
const defaultSheet = "Sheet1"

// Book is a ledger.Book backed by a single .xlsx file.
//
// Thread Safety: all methods are safe for concurrent use. The workbook is
// guarded by one mutex.
type Book struct {
	mu          sync.Mutex
	file        *excelize.File
	path        string
	analytics   string
	counterCell string
	fresh       bool // created by Open, never saved with real sheets
}

// Option configures a Book.
type Option func(*Book)

// WithCounterCell sets the analytics cell holding the counter.
//
// Default: "N1"
func WithCounterCell(cell string) Option {
	return func(b *Book) {
		b.counterCell = cell
	}
}

// Open opens the workbook at path, or starts a new one if no file exists.
// A new workbook is written on the first Flush.
func Open(path, analytics string, opts ...Option) (*Book, error) {
	b := &Book{
		path:        path,
		analytics:   analytics,
		counterCell: DefaultCounterCell,
	}
	for _, opt := range opts {
		opt(b)
	}
	if _, _, err := excelize.CellNameToCoordinates(b.counterCell); err != nil {
		return nil, fmt.Errorf("counter cell %q: %w", b.counterCell, err)
	}

	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		b.file = f
	case errors.Is(err, os.ErrNotExist):
		b.file = excelize.NewFile()
		b.fresh = true
	default:
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return b, nil
}

// Reload implements ledger.Reloader by reading the workbook from disk again.
// Unsaved changes are discarded. A workbook that has never been saved is
// kept as is.
func (b *Book) Reload(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := excelize.OpenFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload workbook %s: %w", b.path, err)
	}
	if err := b.file.Close(); err != nil {
		slog.Warn("close stale workbook", "path", b.path, "error", err)
	}
	b.file = f
	b.fresh = false
	return nil
}

// Close releases the workbook without saving.
func (b *Book) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}

// Path returns the workbook file path.
func (b *Book) Path() string {
	return b.path
}

// Sheet implements ledger.Book. The sheet must already exist; see
// EnsureSheet.
func (b *Book) Sheet(_ context.Context, name string) (ledger.Sheet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasSheet(name) {
		return nil, fmt.Errorf("%w: %q in %s", ledger.ErrSheetNotFound, name, b.path)
	}
	return &sheet{book: b, name: name}, nil
}

// Analytics implements ledger.Book.
func (b *Book) Analytics(ctx context.Context) (ledger.CounterSheet, error) {
	s, err := b.Sheet(ctx, b.analytics)
	if err != nil {
		return nil, err
	}
	return s.(*sheet), nil
}

// Flush implements ledger.Book by saving the workbook.
func (b *Book) Flush(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.file.SaveAs(b.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", b.path, err)
	}
	return nil
}

// EnsureSheet implements ledger.Initializer. An existing sheet with any
// content is left alone; otherwise header is written into row 1.
func (b *Book) EnsureSheet(_ context.Context, name string, header []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hasSheet(name) {
		last, err := b.lastRow(name)
		if err != nil {
			return err
		}
		if last >= ledger.HeaderRow {
			return nil
		}
	} else if err := b.createSheet(name); err != nil {
		return err
	}

	if len(header) == 0 {
		return nil
	}
	if err := b.file.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}
	return nil
}

// SheetNames returns the workbook's sheets in tab order.
func (b *Book) SheetNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.GetSheetList()
}

// Rows returns every row of a sheet, trailing empty cells trimmed.
func (b *Book) Rows(name string) ([][]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasSheet(name) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrSheetNotFound, name)
	}
	return b.file.GetRows(name)
}

func (b *Book) hasSheet(name string) bool {
	idx, err := b.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// createSheet adds a sheet. The placeholder sheet of a new workbook is
// renamed instead, so saved files carry only real sheets.
func (b *Book) createSheet(name string) error {
	if b.fresh {
		b.fresh = false
		if list := b.file.GetSheetList(); len(list) == 1 && list[0] == defaultSheet {
			if err := b.file.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("create sheet %s: %w", name, err)
			}
			return nil
		}
	}
	if _, err := b.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	return nil
}

func (b *Book) lastRow(name string) (int, error) {
	rows, err := b.file.GetRows(name)
	if err != nil {
		return 0, fmt.Errorf("read rows of %s: %w", name, err)
	}
	return len(rows), nil
}

func cellName(row, col int) (string, error) {
	if err := ledger.CheckAddress(row, col); err != nil {
		return "", err
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrInvalidAddress, err)
	}
	return cell, nil
}

// sheet is one worksheet of a Book.
type sheet struct {
	book *Book
	name string
}

func (s *sheet) Name() string {
	return s.name
}

func (s *sheet) LastRow(_ context.Context) (int, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	return s.book.lastRow(s.name)
}

func (s *sheet) ReadIdentityColumn(_ context.Context, rowCount int) ([]string, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	if rowCount <= 0 {
		return []string{}, nil
	}
	rows, err := s.book.file.GetRows(s.name)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", s.name, err)
	}
	out := make([]string, rowCount)
	for i := range out {
		r := ledger.FirstDataRow - 1 + i
		if r < len(rows) && len(rows[r]) >= ledger.IdentityColumn {
			out[i] = rows[r][ledger.IdentityColumn-1]
		}
	}
	return out, nil
}

func (s *sheet) WriteRow(_ context.Context, row int, values []string) error {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	return s.writeRow(row, values)
}

func (s *sheet) AppendRow(_ context.Context, values []string) (int, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	last, err := s.book.lastRow(s.name)
	if err != nil {
		return 0, err
	}
	row := ledger.NextRow(last)
	if err := s.writeRow(row, values); err != nil {
		return 0, err
	}
	return row, nil
}

func (s *sheet) writeRow(row int, values []string) error {
	cell, err := cellName(row, ledger.FirstValueCol)
	if err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, s.name, err)
	}
	if err := s.book.file.SetSheetRow(s.name, cell, &values); err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, s.name, err)
	}
	return nil
}

func (s *sheet) WriteCell(_ context.Context, row, col int, value string) error {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	cell, err := cellName(row, col)
	if err != nil {
		return fmt.Errorf("write cell (%d,%d) of %s: %w", row, col, s.name, err)
	}
	if err := s.book.file.SetCellStr(s.name, cell, value); err != nil {
		return fmt.Errorf("write %s of %s: %w", cell, s.name, err)
	}
	return nil
}

func (s *sheet) ReadCounter(_ context.Context) (int, error) {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	raw, err := s.book.file.GetCellValue(s.name, s.book.counterCell)
	if err != nil {
		return 0, fmt.Errorf("read counter %s!%s: %w", s.name, s.book.counterCell, err)
	}
	return ledger.ParseCounter(raw)
}

func (s *sheet) WriteCounter(_ context.Context, n int) error {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()

	if err := s.book.file.SetCellValue(s.name, s.book.counterCell, n); err != nil {
		return fmt.Errorf("write counter %s!%s: %w", s.name, s.book.counterCell, err)
	}
	return nil
}
