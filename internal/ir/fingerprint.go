package ir

import (
	"bytes"
	"encoding/json"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint computes the content-addressed key of a submission for the
// submission log. Two deliveries of the same answers share a fingerprint,
// which lets the log count redeliveries without storing any answer values.
//
// Cells are NFC normalized and encoded as a JSON array without HTML
// escaping before hashing, so visually identical input from different
// sources hashes the same.
func Fingerprint(v AnswerVector) string {
	normalized := make([]string, len(v))
	for i, cell := range v {
		normalized[i] = norm.NFC.String(cell)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a []string cannot fail.
	_ = enc.Encode(normalized)

	return hashWithDomain(DomainSubmission, bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
