package splice

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/splice/internal/ledger"
	"github.com/roach88/splice/internal/routing"
)

// Analytics header labels.
const (
	IdentityHeader    = "ID"
	DisplayNameHeader = "Name"
	ContactHeader     = "Email"
)

// DestinationHeader builds the header row of a destination sheet: the
// identity column, then the common questions, then the span's questions.
// questions is the responses export header; missing entries are labelled
// by answer index.
func DestinationHeader(layout routing.Layout, span routing.Span, questions []string) []string {
	common := layout.Table.Common()
	header := make([]string, 0, 1+common.Len()+span.Len())
	header = append(header, IdentityHeader)
	for _, s := range []routing.Span{common, span} {
		for i := s.Start; i < s.End; i++ {
			header = append(header, question(questions, i))
		}
	}
	return header
}

func question(questions []string, i int) string {
	if i < len(questions) && questions[i] != "" {
		return questions[i]
	}
	return "Q" + strconv.Itoa(i)
}

// AnalyticsHeader builds the analytics header: identity, display name and
// contact, then each destination's name over its presence column.
func AnalyticsHeader(layout routing.Layout) []string {
	width := routing.ContactColumn
	for _, c := range layout.Table.AnalyticsColumns() {
		if c > width {
			width = c
		}
	}

	header := make([]string, width)
	header[ledger.IdentityColumn-1] = IdentityHeader
	header[routing.DisplayNameColumn-1] = DisplayNameHeader
	header[routing.ContactColumn-1] = ContactHeader
	for _, d := range layout.Table.Destinations() {
		if d.HasAnalytics() {
			header[d.AnalyticsColumn-1] = d.Name
		}
	}
	return header
}

// InitBook is a book whose sheets can be created up front.
type InitBook interface {
	ledger.Book
	ledger.Initializer
}

// Init creates every destination sheet and the analytics sheet that does
// not exist yet, then flushes. Existing sheets are left untouched.
func Init(ctx context.Context, book InitBook, layout routing.Layout, analytics string, questions []string) ([]string, error) {
	var created []string
	for _, d := range layout.Table.Destinations() {
		if err := book.EnsureSheet(ctx, d.Sheet, DestinationHeader(layout, d, questions)); err != nil {
			return created, fmt.Errorf("create sheet %q: %w", d.Sheet, err)
		}
		created = append(created, d.Sheet)
	}

	if err := book.EnsureSheet(ctx, analytics, AnalyticsHeader(layout)); err != nil {
		return created, fmt.Errorf("create analytics sheet %q: %w", analytics, err)
	}
	created = append(created, analytics)

	if err := book.Flush(ctx); err != nil {
		return created, fmt.Errorf("flush: %w", err)
	}
	return created, nil
}
