package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTable is returned when a routing table violates its invariants.
var ErrInvalidTable = errors.New("invalid routing table")

// First columns of an analytics row: identity, display name, contact.
// Presence flags may only live to the right of them.
const (
	IdentityColumn      = 1
	DisplayNameColumn   = 2
	ContactColumn       = 3
	FirstPresenceColumn = 4
)

// CommonName is the name of the shared segment.
const CommonName = "Common"

// Span is a half-open slice [Start, End) of the answer vector belonging to
// one destination, or to the Common segment.
type Span struct {
	// Name is the display name as it appears in a switch column.
	Name string `json:"name" yaml:"name"`

	// Sheet is the destination sheet. Defaults to Name.
	Sheet string `json:"sheet,omitempty" yaml:"sheet,omitempty"`

	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`

	// AnalyticsColumn is the 1-based presence column in the analytics
	// sheet, or 0 when the span has none (always 0 for Common).
	AnalyticsColumn int `json:"analytics_column,omitempty" yaml:"analytics_column,omitempty"`
}

// Len returns the number of answer cells in the span.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// HasAnalytics reports whether the span marks presence in the analytics sheet.
func (s Span) HasAnalytics() bool {
	return s.AnalyticsColumn > 0
}

func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Table is the read-only routing configuration.
//
// Safe for concurrent use: nothing mutates a Table after NewTable returns.
type Table struct {
	common   Span
	spans    map[string]Span
	order    []string // destination names in declaration order
	switches []int
}

// NewTable validates and builds a routing table.
//
// Destinations keep their declaration order. A destination with an empty
// Sheet is stored under its Name.
func NewTable(common Span, destinations []Span, switches []int) (*Table, error) {
	if common.Name == "" {
		common.Name = CommonName
	}
	if err := validateBounds(common); err != nil {
		return nil, err
	}
	if common.HasAnalytics() {
		return nil, fmt.Errorf("%w: %s span cannot have an analytics column", ErrInvalidTable, common.Name)
	}

	t := &Table{
		common:   common,
		spans:    make(map[string]Span, len(destinations)),
		order:    make([]string, 0, len(destinations)),
		switches: append([]int(nil), switches...),
	}

	sheets := make(map[string]string, len(destinations))
	columns := make(map[int]string, len(destinations))
	var placed []Span

	for _, d := range destinations {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("%w: destination with empty name", ErrInvalidTable)
		}
		if d.Sheet == "" {
			d.Sheet = d.Name
		}
		if _, dup := t.spans[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate destination %q", ErrInvalidTable, d.Name)
		}
		if other, dup := sheets[d.Sheet]; dup {
			return nil, fmt.Errorf("%w: destinations %q and %q share sheet %q", ErrInvalidTable, other, d.Name, d.Sheet)
		}
		if err := validateBounds(d); err != nil {
			return nil, err
		}
		if d.AnalyticsColumn < 0 || (d.HasAnalytics() && d.AnalyticsColumn < FirstPresenceColumn) {
			return nil, fmt.Errorf("%w: destination %q analytics column %d must be 0 or >= %d",
				ErrInvalidTable, d.Name, d.AnalyticsColumn, FirstPresenceColumn)
		}
		if d.HasAnalytics() {
			if other, dup := columns[d.AnalyticsColumn]; dup {
				return nil, fmt.Errorf("%w: destinations %q and %q share analytics column %d",
					ErrInvalidTable, other, d.Name, d.AnalyticsColumn)
			}
			columns[d.AnalyticsColumn] = d.Name
		}
		if d.overlaps(common) {
			return nil, fmt.Errorf("%w: destination %q [%d,%d) overlaps %s [%d,%d)",
				ErrInvalidTable, d.Name, d.Start, d.End, common.Name, common.Start, common.End)
		}
		for _, p := range placed {
			if d.overlaps(p) {
				return nil, fmt.Errorf("%w: destination %q [%d,%d) overlaps %q [%d,%d)",
					ErrInvalidTable, d.Name, d.Start, d.End, p.Name, p.Start, p.End)
			}
		}

		placed = append(placed, d)
		sheets[d.Sheet] = d.Name
		t.spans[d.Name] = d
		t.order = append(t.order, d.Name)
	}

	seen := make(map[int]bool, len(switches))
	for _, idx := range switches {
		if idx < 0 {
			return nil, fmt.Errorf("%w: negative switch index %d", ErrInvalidTable, idx)
		}
		if seen[idx] {
			return nil, fmt.Errorf("%w: duplicate switch index %d", ErrInvalidTable, idx)
		}
		seen[idx] = true
	}

	return t, nil
}

func validateBounds(s Span) error {
	if s.Start < 0 || s.End < s.Start {
		return fmt.Errorf("%w: span %q has invalid bounds [%d,%d)", ErrInvalidTable, s.Name, s.Start, s.End)
	}
	return nil
}

// SpanFor returns the span for a destination display name.
func (t *Table) SpanFor(name string) (Span, bool) {
	s, ok := t.spans[name]
	return s, ok
}

// Common returns the shared span prepended to every destination record.
func (t *Table) Common() Span {
	return t.common
}

// SwitchIndices returns the switch columns in evaluation order.
// The returned slice is a copy.
func (t *Table) SwitchIndices() []int {
	return append([]int(nil), t.switches...)
}

// Destinations returns the destination spans in declaration order.
func (t *Table) Destinations() []Span {
	out := make([]Span, len(t.order))
	for i, name := range t.order {
		out[i] = t.spans[name]
	}
	return out
}

// Sheets returns the destination sheet names in declaration order.
func (t *Table) Sheets() []string {
	out := make([]string, len(t.order))
	for i, name := range t.order {
		out[i] = t.spans[name].Sheet
	}
	return out
}

// AnalyticsColumns returns every presence column, ascending.
func (t *Table) AnalyticsColumns() []int {
	var cols []int
	for _, s := range t.spans {
		if s.HasAnalytics() {
			cols = append(cols, s.AnalyticsColumn)
		}
	}
	sort.Ints(cols)
	return cols
}

// Width returns the minimum answer vector length the table addresses.
func (t *Table) Width() int {
	w := t.common.End
	for _, s := range t.spans {
		if s.End > w {
			w = s.End
		}
	}
	for _, idx := range t.switches {
		if idx+1 > w {
			w = idx + 1
		}
	}
	return w
}
