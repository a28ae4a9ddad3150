package store

import (
	"context"
	"fmt"
)

// Outcomes recorded for a submission.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Submission is one row of the submission log.
type Submission struct {
	Fingerprint  string   `json:"fingerprint"`
	Identity     string   `json:"identity"`
	Token        string   `json:"token"`
	Destinations []string `json:"destinations"`
	NewIdentity  bool     `json:"new_identity"`
	Outcome      string   `json:"outcome"`
	Seq          int64    `json:"seq"`
	Redeliveries int      `json:"redeliveries"`
}

// RecordSubmission logs a processed invocation and returns the stored row.
//
// The fingerprint is the idempotency key. A redelivered submission keeps
// its original seq and new-identity flag, takes the latest token, outcome
// and destinations, and bumps the redelivery count.
func (s *Store) RecordSubmission(ctx context.Context, sub Submission) (Submission, error) {
	dests, err := marshalDestinations(sub.Destinations)
	if err != nil {
		return Submission{}, fmt.Errorf("record submission: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Submission{}, fmt.Errorf("record submission: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions
		(fingerprint, identity, token, destinations, new_identity, outcome, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM submissions))
		ON CONFLICT(fingerprint) DO UPDATE SET
			token = excluded.token,
			destinations = excluded.destinations,
			outcome = excluded.outcome,
			redeliveries = submissions.redeliveries + 1
	`,
		sub.Fingerprint,
		sub.Identity,
		sub.Token,
		dests,
		sub.NewIdentity,
		sub.Outcome,
	)
	if err != nil {
		return Submission{}, fmt.Errorf("record submission: insert: %w", err)
	}

	stored, err := scanSubmission(tx.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE fingerprint = ?
	`, sub.Fingerprint))
	if err != nil {
		return Submission{}, fmt.Errorf("record submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Submission{}, fmt.Errorf("record submission: commit: %w", err)
	}
	return stored, nil
}
