package store

import (
	"context"
	"path/filepath"
	"testing"
)

const testAnalytics = "ID Map & Analytics"

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBook creates a store-backed book with the analytics sheet and
// the given destination sheets, each with a one-cell header.
func createTestBook(t *testing.T, sheets ...string) (*Store, *Book) {
	t.Helper()
	s := createTestStore(t)
	b := s.Book(testAnalytics)
	ctx := context.Background()
	for _, name := range append([]string{testAnalytics}, sheets...) {
		if err := b.EnsureSheet(ctx, name, []string{"ID"}); err != nil {
			t.Fatalf("EnsureSheet(%q) failed: %v", name, err)
		}
	}
	return s, b
}

// createTestSubmission creates a submission with minimal required fields.
func createTestSubmission(fingerprint, identity string, destinations ...string) Submission {
	return Submission{
		Fingerprint:  fingerprint,
		Identity:     identity,
		Token:        "tok-" + fingerprint,
		Destinations: destinations,
		Outcome:      OutcomeOK,
	}
}
