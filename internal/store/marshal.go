package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalDestinations converts sheet names to JSON TEXT for storage.
// HTML escaping is disabled so names like "P&C" stay readable in the
// database.
func marshalDestinations(sheets []string) (string, error) {
	if sheets == nil {
		sheets = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sheets); err != nil {
		return "", fmt.Errorf("marshal destinations: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalDestinations parses JSON TEXT back to sheet names.
func unmarshalDestinations(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var sheets []string
	if err := json.Unmarshal([]byte(data), &sheets); err != nil {
		return nil, fmt.Errorf("unmarshal destinations: %w", err)
	}
	return sheets, nil
}
