package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a splice test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Routing is a .cue or .yaml routing file, relative to the scenario
	// file when loaded with LoadScenario. Empty uses routing.Default.
	Routing string `yaml:"routing,omitempty"`

	// AnalyticsSheet names the analytics sheet. Defaults to
	// DefaultAnalyticsSheet.
	AnalyticsSheet string `yaml:"analytics_sheet,omitempty"`

	// Concurrent submits every answer vector at once instead of in order.
	Concurrent bool `yaml:"concurrent,omitempty"`

	// Submissions are spliced in order (or all at once when Concurrent).
	Submissions []SubmissionStep `yaml:"submissions"`

	// Assertions validate the final book.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultAnalyticsSheet is the analytics sheet name when a scenario sets
// none.
const DefaultAnalyticsSheet = "ID Map & Analytics"

// SubmissionStep is one answer vector and what splicing it should do.
type SubmissionStep struct {
	// Answers are flattened into an answer vector; nested lists become
	// joined cells.
	Answers []any `yaml:"answers"`

	// Expect is optional.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one submission.
type ExpectClause struct {
	// Destinations are the sheets written, in switch order. Nil skips the
	// check; an empty list expects no writes.
	Destinations []string `yaml:"destinations"`

	// NewIdentity, when set, must match whether the counter moved.
	NewIdentity *bool `yaml:"new_identity,omitempty"`

	// Unknown lists switch values expected to name no destination.
	Unknown []string `yaml:"unknown,omitempty"`

	// Error is a substring of the expected error. Empty expects success.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final book.
type Assertion struct {
	// Type is one of counter, row_count, cell, identity_row.
	Type string `yaml:"type"`

	// Sheet is used by row_count, cell and identity_row.
	Sheet string `yaml:"sheet,omitempty"`

	// Count is used by counter and row_count.
	Count int `yaml:"count,omitempty"`

	// Row is 1-based; used by cell and identity_row.
	Row int `yaml:"row,omitempty"`

	// Column is 1-based; used by cell.
	Column int `yaml:"column,omitempty"`

	// Value is the expected cell content; used by cell.
	Value string `yaml:"value,omitempty"`

	// Identity is the expected identity; used by identity_row.
	Identity string `yaml:"identity,omitempty"`
}

// Assertion type constants.
const (
	AssertCounter     = "counter"
	AssertRowCount    = "row_count"
	AssertCell        = "cell"
	AssertIdentityRow = "identity_row"
)

// LoadScenario reads and parses a scenario YAML file. A relative routing
// path is resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the routing path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Routing != "" && !filepath.IsAbs(scenario.Routing) && basePath != "" {
		scenario.Routing = filepath.Join(basePath, scenario.Routing)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Submissions) == 0 {
		return fmt.Errorf("submissions list is required and must be non-empty")
	}

	if s.Routing != "" {
		if _, err := os.Stat(s.Routing); os.IsNotExist(err) {
			return fmt.Errorf("routing file not found: %s", s.Routing)
		}
	}

	for i, step := range s.Submissions {
		if len(step.Answers) == 0 {
			return fmt.Errorf("submissions[%d]: answers is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCounter:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for counter", index)
		}
	case AssertRowCount:
		if a.Sheet == "" {
			return fmt.Errorf("assertions[%d]: sheet is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertCell:
		if a.Sheet == "" {
			return fmt.Errorf("assertions[%d]: sheet is required for cell", index)
		}
		if a.Row < 1 || a.Column < 1 {
			return fmt.Errorf("assertions[%d]: row and column must be positive for cell", index)
		}
	case AssertIdentityRow:
		if a.Sheet == "" || a.Identity == "" {
			return fmt.Errorf("assertions[%d]: sheet and identity are required for identity_row", index)
		}
		if a.Row < 1 {
			return fmt.Errorf("assertions[%d]: row must be positive for identity_row", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
