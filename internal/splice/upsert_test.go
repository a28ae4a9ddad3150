package splice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/ledger"
)

func TestUpsertAppendsBelowHeader(t *testing.T) {
	ctx := context.Background()
	book := ledger.NewMemoryBook(testAnalytics)
	require.NoError(t, book.EnsureSheet(ctx, "AI", []string{"ID", "Email", "Q1"}))
	s, err := book.Sheet(ctx, "AI")
	require.NoError(t, err)

	id := ir.IdentityOf("a", "b")
	up, err := Upsert(ctx, id, []string{"a@x.org", "yes"}, s)
	require.NoError(t, err)
	assert.Equal(t, Upserted{Row: 2, Created: true}, up)

	ms, _ := book.Lookup("AI")
	assert.Equal(t, []string{"ID", "Email", "Q1"}, ms.Row(1, 3))
	assert.Equal(t, []string{string(id), "a@x.org", "yes"}, ms.Row(2, 3))
}

func TestUpsertOverwritesMatchingRow(t *testing.T) {
	ctx := context.Background()
	book := ledger.NewMemoryBook(testAnalytics)
	s, err := book.Sheet(ctx, "AI")
	require.NoError(t, err)

	first, second := ir.IdentityOf("1", "1"), ir.IdentityOf("2", "2")
	_, err = Upsert(ctx, first, []string{"one"}, s)
	require.NoError(t, err)
	_, err = Upsert(ctx, second, []string{"two"}, s)
	require.NoError(t, err)

	up, err := Upsert(ctx, first, []string{"uno"}, s)
	require.NoError(t, err)
	assert.Equal(t, Upserted{Row: 2}, up)

	ms, _ := book.Lookup("AI")
	assert.Equal(t, []string{string(first), "uno"}, ms.Row(2, 2))
	assert.Equal(t, []string{string(second), "two"}, ms.Row(3, 2))
	assert.Len(t, ms.Rows(), 3)
}

func TestUpsertMatchesFirstOccurrence(t *testing.T) {
	ctx := context.Background()
	book := ledger.NewMemoryBook(testAnalytics)
	s, err := book.Sheet(ctx, "AI")
	require.NoError(t, err)

	// A hand-edited sheet can carry the same identity twice.
	id := ir.IdentityOf("dup", "dup")
	for row := 2; row <= 3; row++ {
		require.NoError(t, s.WriteCell(ctx, row, ledger.IdentityColumn, string(id)))
	}

	up, err := Upsert(ctx, id, []string{"v"}, s)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Row)
}
