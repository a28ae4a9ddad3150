package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// MemoryBook is an in-process Book. It backs tests, dry runs and the test
// harness.
//
// Thread Safety: all methods are safe for concurrent use; each call is
// atomic. Multi-call sequences still need an external lock.
type MemoryBook struct {
	mu        sync.Mutex
	sheets    map[string]*MemorySheet
	analytics string
	flushes   int
}

// NewMemoryBook creates an empty book whose analytics sheet is named
// analytics. Destination sheets are created on first access.
func NewMemoryBook(analytics string) *MemoryBook {
	b := &MemoryBook{
		sheets:    make(map[string]*MemorySheet),
		analytics: analytics,
	}
	b.sheets[analytics] = newMemorySheet(analytics)
	return b
}

// Sheet implements Book. Missing sheets are created empty.
func (b *MemoryBook) Sheet(_ context.Context, name string) (Sheet, error) {
	return b.sheet(name), nil
}

// Analytics implements Book.
func (b *MemoryBook) Analytics(_ context.Context) (CounterSheet, error) {
	return b.sheet(b.analytics), nil
}

// Flush implements Book. Writes are immediately visible; Flush only counts.
func (b *MemoryBook) Flush(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushes++
	return nil
}

// EnsureSheet implements Initializer.
func (b *MemoryBook) EnsureSheet(ctx context.Context, name string, header []string) error {
	s := b.sheet(name)
	if last, _ := s.LastRow(ctx); last >= HeaderRow {
		return nil
	}
	for i, h := range header {
		if err := s.WriteCell(ctx, HeaderRow, i+1, h); err != nil {
			return err
		}
	}
	return nil
}

// Flushes returns how many times Flush has been called.
func (b *MemoryBook) Flushes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushes
}

// SheetNames returns every sheet name, sorted.
func (b *MemoryBook) SheetNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.sheets))
	for name := range b.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named sheet without creating it.
func (b *MemoryBook) Lookup(name string) (*MemorySheet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sheets[name]
	return s, ok
}

func (b *MemoryBook) sheet(name string) *MemorySheet {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sheets[name]
	if !ok {
		s = newMemorySheet(name)
		b.sheets[name] = s
	}
	return s
}

// MemorySheet is a sparse grid of cells plus a counter.
type MemorySheet struct {
	mu      sync.Mutex
	name    string
	rows    map[int]map[int]string
	counter string
}

func newMemorySheet(name string) *MemorySheet {
	return &MemorySheet{name: name, rows: make(map[int]map[int]string)}
}

// Name implements Sheet.
func (s *MemorySheet) Name() string {
	return s.name
}

// LastRow implements Sheet.
func (s *MemorySheet) LastRow(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRow(), nil
}

func (s *MemorySheet) lastRow() int {
	last := 0
	for r, cells := range s.rows {
		if r > last && len(cells) > 0 {
			last = r
		}
	}
	return last
}

// ReadIdentityColumn implements Sheet.
func (s *MemorySheet) ReadIdentityColumn(_ context.Context, rowCount int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rowCount < 0 {
		rowCount = 0
	}
	out := make([]string, rowCount)
	for i := range out {
		out[i] = s.rows[FirstDataRow+i][IdentityColumn]
	}
	return out, nil
}

// WriteRow implements Sheet.
func (s *MemorySheet) WriteRow(_ context.Context, row int, values []string) error {
	if err := CheckAddress(row, FirstValueCol); err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, s.name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeRow(row, values)
	return nil
}

// AppendRow implements Sheet.
func (s *MemorySheet) AppendRow(_ context.Context, values []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := NextRow(s.lastRow())
	s.writeRow(row, values)
	return row, nil
}

func (s *MemorySheet) writeRow(row int, values []string) {
	for i, v := range values {
		s.set(row, FirstValueCol+i, v)
	}
}

// WriteCell implements Sheet.
func (s *MemorySheet) WriteCell(_ context.Context, row, col int, value string) error {
	if err := CheckAddress(row, col); err != nil {
		return fmt.Errorf("write cell (%d,%d) of %s: %w", row, col, s.name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(row, col, value)
	return nil
}

// set stores a cell. Empty values are still stored so that a written row
// counts towards LastRow, matching spreadsheet backends where a written
// range extends the used area.
func (s *MemorySheet) set(row, col int, value string) {
	cells, ok := s.rows[row]
	if !ok {
		cells = make(map[int]string)
		s.rows[row] = cells
	}
	cells[col] = value
}

// ReadCounter implements CounterSheet.
func (s *MemorySheet) ReadCounter(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ParseCounter(s.counter)
}

// WriteCounter implements CounterSheet.
func (s *MemorySheet) WriteCounter(_ context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = strconv.Itoa(n)
	return nil
}

// Cell returns the value at (row, col).
func (s *MemorySheet) Cell(row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[row][col]
}

// Row returns columns 1..width of row.
func (s *MemorySheet) Row(row, width int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, width)
	for c := 1; c <= width; c++ {
		out[c-1] = s.rows[row][c]
	}
	return out
}

// Rows returns every row from 1 to LastRow, each trimmed of trailing
// empty cells.
func (s *MemorySheet) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastRow()
	out := make([][]string, last)
	for r := 1; r <= last; r++ {
		width := 0
		for c, v := range s.rows[r] {
			if c > width && v != "" {
				width = c
			}
		}
		row := make([]string, width)
		for c := 1; c <= width; c++ {
			row[c-1] = s.rows[r][c]
		}
		out[r-1] = row
	}
	return out
}

// ParseCounter parses a counter cell. Empty reads as 0.
func ParseCounter(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("ledger: counter cell %q is not an integer: %w", raw, err)
	}
	return n, nil
}
