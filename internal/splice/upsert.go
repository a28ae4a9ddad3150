package splice

import (
	"context"
	"fmt"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/ledger"
)

// Upserted describes the row Upsert wrote.
type Upserted struct {
	Row     int
	Created bool
}

// Upsert writes values as the record for id in sheet.
//
// The identity column is scanned top to bottom below the header. On a match
// the row is overwritten in place from column 2; the identity cell is not
// rewritten. Otherwise values are appended after the last row and id is
// written into the new row's identity column.
func Upsert(ctx context.Context, id ir.Identity, values []string, sheet ledger.Sheet) (Upserted, error) {
	row, found, err := findIdentity(ctx, id, sheet)
	if err != nil {
		return Upserted{}, err
	}

	if found {
		if err := sheet.WriteRow(ctx, row, values); err != nil {
			return Upserted{}, fmt.Errorf("overwrite row %d: %w", row, err)
		}
		return Upserted{Row: row}, nil
	}

	row, err = sheet.AppendRow(ctx, values)
	if err != nil {
		return Upserted{}, fmt.Errorf("append row: %w", err)
	}
	if err := sheet.WriteCell(ctx, row, ledger.IdentityColumn, id.String()); err != nil {
		return Upserted{}, fmt.Errorf("write identity to row %d: %w", row, err)
	}
	return Upserted{Row: row, Created: true}, nil
}

// findIdentity returns the first data row whose identity cell equals id.
func findIdentity(ctx context.Context, id ir.Identity, sheet ledger.Sheet) (int, bool, error) {
	last, err := sheet.LastRow(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("read last row: %w", err)
	}
	ids, err := sheet.ReadIdentityColumn(ctx, ledger.DataRows(last))
	if err != nil {
		return 0, false, fmt.Errorf("read identity column: %w", err)
	}
	for i, v := range ids {
		if v == string(id) {
			return ledger.FirstDataRow + i, true, nil
		}
	}
	return 0, false, nil
}
