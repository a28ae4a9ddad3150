package harness

import (
	"bytes"
	"encoding/json"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario run.
type Snapshot struct {
	ScenarioName string                `json:"scenario_name"`
	Counter      int                   `json:"counter"`
	Invocations  []Invocation          `json:"invocations"`
	Sheets       map[string][][]string `json:"sheets"`
}

// NewSnapshot builds the snapshot of result. For concurrent scenarios the
// parts that depend on scheduling are normalized: tokens and new-identity
// flags are dropped and data rows are sorted.
func NewSnapshot(name string, result *Result, concurrent bool) Snapshot {
	snap := Snapshot{
		ScenarioName: name,
		Counter:      result.Counter,
		Invocations:  slices.Clone(result.Invocations),
		Sheets:       result.Sheets,
	}
	if !concurrent {
		return snap
	}

	for i := range snap.Invocations {
		snap.Invocations[i].Token = ""
		snap.Invocations[i].NewIdentity = false
	}
	snap.Sheets = make(map[string][][]string, len(result.Sheets))
	for name, rows := range result.Sheets {
		sorted := slices.Clone(rows)
		if len(sorted) > 1 {
			data := sorted[1:]
			slices.SortFunc(data, func(a, b []string) int {
				return slices.Compare(a, b)
			})
		}
		snap.Sheets[name] = sorted
	}
	return snap
}

// Marshal renders the snapshot as indented JSON. Map keys are sorted, so
// the output is stable.
func (s Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, scenario.Concurrent); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result, concurrent bool) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result, concurrent).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
