package routing

import (
	"fmt"
	"strings"

	"github.com/roach88/splice/internal/ir"
)

// DefaultSentinel is the switch value meaning "not applying here".
const DefaultSentinel = "No"

// Fields locates the applicant fields inside the answer vector.
type Fields struct {
	// Identity holds the two answer indices hashed into the identity.
	Identity []int `json:"identity" yaml:"identity"`

	// Name holds the indices joined with a space into the display name.
	Name []int `json:"name" yaml:"name"`

	// Contact is the index of the contact field.
	Contact int `json:"contact" yaml:"contact"`
}

// IdentityOf derives the applicant identity from v.
// Callers must have validated f through NewLayout.
func (f Fields) IdentityOf(v ir.AnswerVector) ir.Identity {
	return ir.IdentityOf(v.At(f.Identity[0]), v.At(f.Identity[1]))
}

// DisplayName joins the name fields of v with single spaces.
func (f Fields) DisplayName(v ir.AnswerVector) string {
	parts := make([]string, len(f.Name))
	for i, idx := range f.Name {
		parts[i] = v.At(idx)
	}
	return strings.Join(parts, " ")
}

// ContactOf returns the contact field of v.
func (f Fields) ContactOf(v ir.AnswerVector) string {
	return v.At(f.Contact)
}

func (f Fields) indices() []int {
	out := make([]int, 0, len(f.Identity)+len(f.Name)+1)
	out = append(out, f.Identity...)
	out = append(out, f.Contact)
	return append(out, f.Name...)
}

func (f Fields) width() int {
	w := 0
	for _, idx := range f.indices() {
		if idx+1 > w {
			w = idx + 1
		}
	}
	return w
}

func (f Fields) validate() error {
	if len(f.Identity) != 2 {
		return fmt.Errorf("%w: identity needs exactly 2 field indices, got %d", ErrInvalidTable, len(f.Identity))
	}
	if len(f.Name) == 0 {
		return fmt.Errorf("%w: display name needs at least 1 field index", ErrInvalidTable)
	}
	for _, idx := range f.indices() {
		if idx < 0 {
			return fmt.Errorf("%w: negative field index %d", ErrInvalidTable, idx)
		}
	}
	return nil
}

// Layout is everything the coordinator needs to read a submission: the
// routing table, where the applicant fields live, and the negative
// sentinel for switch columns.
type Layout struct {
	Table    *Table
	Fields   Fields
	Sentinel string
}

// NewLayout validates fields against the table and returns a Layout.
// An empty sentinel defaults to DefaultSentinel.
func NewLayout(table *Table, fields Fields, sentinel string) (Layout, error) {
	if table == nil {
		return Layout{}, fmt.Errorf("%w: nil table", ErrInvalidTable)
	}
	if err := fields.validate(); err != nil {
		return Layout{}, err
	}
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return Layout{Table: table, Fields: fields, Sentinel: sentinel}, nil
}

// Width returns the minimum answer vector length the layout addresses.
func (l Layout) Width() int {
	w := l.Table.Width()
	if fw := l.Fields.width(); fw > w {
		w = fw
	}
	return w
}

// Selects reports whether a switch value names a destination, i.e. it is
// neither empty nor the sentinel. Whether the name is known is a separate
// question for Table.SpanFor.
func (l Layout) Selects(value string) bool {
	return value != "" && value != l.Sentinel
}
