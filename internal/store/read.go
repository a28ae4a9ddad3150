package store

import (
	"context"
	"fmt"
)

const submissionColumns = `fingerprint, identity, token, destinations, new_identity, outcome, seq, redeliveries`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (Submission, error) {
	var sub Submission
	var dests string
	err := row.Scan(
		&sub.Fingerprint,
		&sub.Identity,
		&sub.Token,
		&dests,
		&sub.NewIdentity,
		&sub.Outcome,
		&sub.Seq,
		&sub.Redeliveries,
	)
	if err != nil {
		return Submission{}, fmt.Errorf("scan submission: %w", err)
	}
	sub.Destinations, err = unmarshalDestinations(dests)
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns the most recent limit submissions in seq order.
// A limit <= 0 returns all of them.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return s.querySubmissions(ctx, `
		SELECT * FROM (
			SELECT `+submissionColumns+` FROM submissions
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`, limit)
}

// SubmissionsFor returns every submission by one identity in seq order.
func (s *Store) SubmissionsFor(ctx context.Context, identity string) ([]Submission, error) {
	return s.querySubmissions(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE identity = ?
		ORDER BY seq ASC
	`, identity)
}

func (s *Store) querySubmissions(ctx context.Context, query string, args ...any) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}
