package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/ledger"
	"github.com/roach88/splice/internal/lock"
	"github.com/roach88/splice/internal/routing"
	"github.com/roach88/splice/internal/splice"
)

const analytics = "ID Map & Analytics"

func openTestBook(t *testing.T, opts ...Option) (*Book, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recruitment.xlsx")
	b, err := Open(path, analytics, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, path
}

func TestOpenNewWorkbookRenamesPlaceholder(t *testing.T) {
	ctx := context.Background()
	b, _ := openTestBook(t)

	require.NoError(t, b.EnsureSheet(ctx, analytics, []string{"ID", "Name", "Email"}))
	require.NoError(t, b.EnsureSheet(ctx, "AI", []string{"ID"}))

	assert.Equal(t, []string{analytics, "AI"}, b.SheetNames())
}

func TestSheetMustExist(t *testing.T) {
	b, _ := openTestBook(t)

	_, err := b.Sheet(context.Background(), "HPC")
	assert.ErrorIs(t, err, ledger.ErrSheetNotFound)

	_, err = b.Analytics(context.Background())
	assert.ErrorIs(t, err, ledger.ErrSheetNotFound)
}

func TestOpenRejectsBadCounterCell(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.xlsx"), analytics, WithCounterCell("not a cell"))
	assert.Error(t, err)
}

func TestSheetRowOperations(t *testing.T) {
	ctx := context.Background()
	b, _ := openTestBook(t)
	require.NoError(t, b.EnsureSheet(ctx, "AI", []string{"ID", "Email", "Q1"}))

	s, err := b.Sheet(ctx, "AI")
	require.NoError(t, err)

	last, err := s.LastRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.HeaderRow, last)

	row, err := s.AppendRow(ctx, []string{"a@x.org", "yes"})
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	require.NoError(t, s.WriteCell(ctx, row, ledger.IdentityColumn, "id-1"))

	row, err = s.AppendRow(ctx, []string{"b@x.org", "no"})
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	require.NoError(t, s.WriteRow(ctx, 2, []string{"a@x.org", "maybe"}))

	ids, err := s.ReadIdentityColumn(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1", ""}, ids)

	rows, err := b.Rows("AI")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ID", "Email", "Q1"},
		{"id-1", "a@x.org", "maybe"},
		{"", "b@x.org", "no"},
	}, rows)

	assert.ErrorIs(t, s.WriteCell(ctx, 0, 1, "x"), ledger.ErrInvalidAddress)
}

func TestEnsureSheetKeepsExistingContent(t *testing.T) {
	ctx := context.Background()
	b, _ := openTestBook(t)
	require.NoError(t, b.EnsureSheet(ctx, "AI", []string{"ID", "Old"}))
	require.NoError(t, b.EnsureSheet(ctx, "AI", []string{"ID", "New"}))

	rows, err := b.Rows("AI")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID", "Old"}}, rows)
}

func TestCounterRoundTripsThroughFile(t *testing.T) {
	ctx := context.Background()
	b, path := openTestBook(t, WithCounterCell("P2"))
	require.NoError(t, b.EnsureSheet(ctx, analytics, []string{"ID"}))

	s, err := b.Analytics(ctx)
	require.NoError(t, err)
	n, err := s.ReadCounter(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.WriteCounter(ctx, 7))
	require.NoError(t, b.Flush(ctx))

	reopened, err := Open(path, analytics, WithCounterCell("P2"))
	require.NoError(t, err)
	defer reopened.Close()

	rs, err := reopened.Analytics(ctx)
	require.NoError(t, err)
	n, err = rs.ReadCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestSpliceIntoWorkbook(t *testing.T) {
	ctx := context.Background()
	b, path := openTestBook(t)

	layout := routing.Default()
	require.NoError(t, b.EnsureSheet(ctx, analytics, []string{"ID", "Name", "Email"}))
	for _, name := range layout.Table.Sheets() {
		require.NoError(t, b.EnsureSheet(ctx, name, []string{"ID"}))
	}

	cells := make([]string, layout.Width())
	cells[1], cells[2], cells[3], cells[4] = "alice@example.org", "Alice", "Smith", "A123"
	cells[25] = "HPC"
	for i := 40; i < 47; i++ {
		cells[i] = "h"
	}

	c := splice.NewCoordinator(b, lock.NewLocal(), layout)
	res, err := c.Splice(ctx, ir.NewAnswerVector(cells...))
	require.NoError(t, err)
	assert.Equal(t, []string{"HPC"}, res.Sheets())

	// Flush saved the file; a fresh handle sees the splice.
	reopened, err := Open(path, analytics)
	require.NoError(t, err)
	defer reopened.Close()

	rows, err := reopened.Rows("HPC")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "57ae28bf468415f1ac819565e2e85fbf", rows[1][0])
	assert.Equal(t, []string{"h", "h", "h", "h", "h", "h", "h"}, rows[1][len(rows[1])-7:])

	rows, err = reopened.Rows(analytics)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"57ae28bf468415f1ac819565e2e85fbf", "Alice Smith", "alice@example.org",
		"FALSE", "TRUE", "FALSE", "FALSE", "FALSE", "FALSE", "FALSE", "FALSE", "FALSE",
	}, rows[1])

	s, err := reopened.Analytics(ctx)
	require.NoError(t, err)
	n, err := s.ReadCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func hpcAnswers(layout routing.Layout, email, first string) ir.AnswerVector {
	cells := make([]string, layout.Width())
	cells[1], cells[2], cells[3], cells[4] = email, first, "Doe", "A1"
	cells[25] = "HPC"
	for i := 40; i < 47; i++ {
		cells[i] = first
	}
	return ir.NewAnswerVector(cells...)
}

func TestSpliceSeesWritesFromOtherHandle(t *testing.T) {
	ctx := context.Background()
	layout := routing.Default()

	setup, path := openTestBook(t)
	require.NoError(t, setup.EnsureSheet(ctx, analytics, []string{"ID", "Name", "Email"}))
	for _, name := range layout.Table.Sheets() {
		require.NoError(t, setup.EnsureSheet(ctx, name, []string{"ID"}))
	}
	require.NoError(t, setup.Flush(ctx))

	// Two handles on one file stand in for two processes.
	first, err := Open(path, analytics)
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(path, analytics)
	require.NoError(t, err)
	defer second.Close()

	shared := lock.NewLocal()
	_, err = splice.NewCoordinator(first, shared, layout).Splice(ctx, hpcAnswers(layout, "one@x", "One"))
	require.NoError(t, err)
	res, err := splice.NewCoordinator(second, shared, layout).Splice(ctx, hpcAnswers(layout, "two@x", "Two"))
	require.NoError(t, err)
	assert.True(t, res.NewIdentity)
	require.Len(t, res.Destinations, 1)
	assert.Equal(t, 3, res.Destinations[0].Row)

	reopened, err := Open(path, analytics)
	require.NoError(t, err)
	defer reopened.Close()

	rows, err := reopened.Rows("HPC")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ir.IdentityOf("one@x", "A1").String(), rows[1][0])
	assert.Equal(t, ir.IdentityOf("two@x", "A1").String(), rows[2][0])

	rows, err = reopened.Rows(analytics)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	s, err := reopened.Analytics(ctx)
	require.NoError(t, err)
	n, err := s.ReadCounter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReloadDiscardsUnsavedChanges(t *testing.T) {
	ctx := context.Background()
	b, _ := openTestBook(t)
	require.NoError(t, b.EnsureSheet(ctx, "AI", []string{"ID"}))

	// Never saved: the in-memory workbook is all there is.
	require.NoError(t, b.Reload(ctx))
	assert.Equal(t, []string{"AI"}, b.SheetNames())

	require.NoError(t, b.Flush(ctx))
	s, err := b.Sheet(ctx, "AI")
	require.NoError(t, err)
	_, err = s.AppendRow(ctx, []string{"unsaved"})
	require.NoError(t, err)

	require.NoError(t, b.Reload(ctx))
	rows, err := b.Rows("AI")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID"}}, rows)
}
