package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/splice/internal/ledger"
)

// Book is a ledger.Book stored in the sheets and cells tables.
//
// Sheets must be created with EnsureSheet before use, the same as in a
// workbook.
type Book struct {
	s         *Store
	analytics string
}

// Book returns the ledger view of the store. analytics names the sheet
// holding presence flags and the counter.
func (s *Store) Book(analytics string) *Book {
	return &Book{s: s, analytics: analytics}
}

// Sheet implements ledger.Book.
func (b *Book) Sheet(ctx context.Context, name string) (ledger.Sheet, error) {
	return b.open(ctx, name)
}

// Analytics implements ledger.Book.
func (b *Book) Analytics(ctx context.Context) (ledger.CounterSheet, error) {
	return b.open(ctx, b.analytics)
}

// Flush implements ledger.Book. Writes are committed as they happen, so
// flushing only moves the WAL into the main database file.
func (b *Book) Flush(ctx context.Context) error {
	frames, done, err := b.s.Checkpoint(ctx)
	if err != nil {
		return err
	}
	slog.Debug("wal checkpoint", "frames", frames, "checkpointed", done)
	return nil
}

// EnsureSheet implements ledger.Initializer.
func (b *Book) EnsureSheet(ctx context.Context, name string, header []string) error {
	tx, err := b.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure sheet %s: begin tx: %w", name, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sheets (name, seq)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sheets))
		ON CONFLICT(name) DO NOTHING
	`, name)
	if err != nil {
		return fmt.Errorf("ensure sheet %s: %w", name, err)
	}

	last, err := lastRow(ctx, tx, name)
	if err != nil {
		return err
	}
	if last < ledger.HeaderRow {
		for i, h := range header {
			if err := putCell(ctx, tx, name, ledger.HeaderRow, i+1, h); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure sheet %s: commit: %w", name, err)
	}
	return nil
}

// SheetNames returns every sheet in creation order.
func (b *Book) SheetNames(ctx context.Context) ([]string, error) {
	rows, err := b.s.db.QueryContext(ctx, `SELECT name FROM sheets ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets: %w", err)
	}
	return names, nil
}

// Rows returns rows 1..LastRow of a sheet, each trimmed of trailing empty
// cells.
func (b *Book) Rows(ctx context.Context, name string) ([][]string, error) {
	if _, err := b.open(ctx, name); err != nil {
		return nil, err
	}
	last, err := lastRow(ctx, b.s.db, name)
	if err != nil {
		return nil, err
	}

	rows, err := b.s.db.QueryContext(ctx, `
		SELECT row_idx, col_idx, value FROM cells
		WHERE sheet = ?
		ORDER BY row_idx ASC, col_idx ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query cells of %s: %w", name, err)
	}
	defer rows.Close()

	out := make([][]string, last)
	for rows.Next() {
		var r, c int
		var v string
		if err := rows.Scan(&r, &c, &v); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		if v == "" {
			continue
		}
		for len(out[r-1]) < c {
			out[r-1] = append(out[r-1], "")
		}
		out[r-1][c-1] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells of %s: %w", name, err)
	}
	for i := range out {
		if out[i] == nil {
			out[i] = []string{}
		}
	}
	return out, nil
}

func (b *Book) open(ctx context.Context, name string) (*sheet, error) {
	var found string
	err := b.s.db.QueryRowContext(ctx, `SELECT name FROM sheets WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrSheetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("look up sheet %s: %w", name, err)
	}
	return &sheet{s: b.s, name: name}, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lastRow(ctx context.Context, q querier, name string) (int, error) {
	var last int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(row_idx), 0) FROM cells WHERE sheet = ?
	`, name).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last row of %s: %w", name, err)
	}
	return last, nil
}

func putCell(ctx context.Context, q querier, name string, row, col int, value string) error {
	if err := ledger.CheckAddress(row, col); err != nil {
		return fmt.Errorf("write cell (%d,%d) of %s: %w", row, col, name, err)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO cells (sheet, row_idx, col_idx, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sheet, row_idx, col_idx) DO UPDATE SET value = excluded.value
	`, name, row, col, value)
	if err != nil {
		return fmt.Errorf("write cell (%d,%d) of %s: %w", row, col, name, err)
	}
	return nil
}

func putRow(ctx context.Context, q querier, name string, row int, values []string) error {
	for i, v := range values {
		if err := putCell(ctx, q, name, row, ledger.FirstValueCol+i, v); err != nil {
			return err
		}
	}
	return nil
}

// sheet is one sheet of a Book.
type sheet struct {
	s    *Store
	name string
}

func (sh *sheet) Name() string {
	return sh.name
}

func (sh *sheet) LastRow(ctx context.Context) (int, error) {
	return lastRow(ctx, sh.s.db, sh.name)
}

func (sh *sheet) ReadIdentityColumn(ctx context.Context, rowCount int) ([]string, error) {
	out := make([]string, max(rowCount, 0))
	if len(out) == 0 {
		return out, nil
	}

	rows, err := sh.s.db.QueryContext(ctx, `
		SELECT row_idx, value FROM cells
		WHERE sheet = ? AND col_idx = ? AND row_idx BETWEEN ? AND ?
		ORDER BY row_idx ASC
	`, sh.name, ledger.IdentityColumn, ledger.FirstDataRow, ledger.FirstDataRow+rowCount-1)
	if err != nil {
		return nil, fmt.Errorf("read identity column of %s: %w", sh.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r int
		var v string
		if err := rows.Scan(&r, &v); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out[r-ledger.FirstDataRow] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity column of %s: %w", sh.name, err)
	}
	return out, nil
}

func (sh *sheet) WriteRow(ctx context.Context, row int, values []string) error {
	tx, err := sh.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write row %d of %s: begin tx: %w", row, sh.name, err)
	}
	defer tx.Rollback()

	if err := putRow(ctx, tx, sh.name, row, values); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write row %d of %s: commit: %w", row, sh.name, err)
	}
	return nil
}

// AppendRow picks the row and writes it in one transaction.
func (sh *sheet) AppendRow(ctx context.Context, values []string) (int, error) {
	tx, err := sh.s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append row to %s: begin tx: %w", sh.name, err)
	}
	defer tx.Rollback()

	last, err := lastRow(ctx, tx, sh.name)
	if err != nil {
		return 0, err
	}
	row := ledger.NextRow(last)
	if err := putRow(ctx, tx, sh.name, row, values); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append row to %s: commit: %w", sh.name, err)
	}
	return row, nil
}

func (sh *sheet) WriteCell(ctx context.Context, row, col int, value string) error {
	return putCell(ctx, sh.s.db, sh.name, row, col, value)
}

func (sh *sheet) ReadCounter(ctx context.Context) (int, error) {
	var n int
	err := sh.s.db.QueryRowContext(ctx, `SELECT counter FROM sheets WHERE name = ?`, sh.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("read counter of %s: %w", sh.name, err)
	}
	return n, nil
}

func (sh *sheet) WriteCounter(ctx context.Context, n int) error {
	_, err := sh.s.db.ExecContext(ctx, `UPDATE sheets SET counter = ? WHERE name = ?`, n, sh.name)
	if err != nil {
		return fmt.Errorf("write counter of %s: %w", sh.name, err)
	}
	return nil
}
