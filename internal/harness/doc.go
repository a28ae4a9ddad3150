// Package harness runs splice scenarios: a routing table, a list of
// submissions and expectations about the resulting book.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: resubmission
//	description: "A second submission rewrites the applicant's row"
//	routing: routes.yaml        # optional; defaults to the built-in layout
//	concurrent: false           # submit all answers at once
//	submissions:
//	  - answers: ["t1", "ann@x.org", "Ann", "Lee", "Alpha", "a1", "a2", "No", ""]
//	    expect:
//	      destinations: [Alpha]
//	      new_identity: true
//	assertions:
//	  - type: counter
//	    count: 1
//	  - type: row_count
//	    sheet: Alpha
//	    count: 1
//	  - type: cell
//	    sheet: Alpha
//	    row: 2
//	    column: 5
//	    value: a1
//
// # Assertion Types
//
//   - counter: the unique-applicant counter equals count
//   - row_count: sheet has count data rows below its header
//   - cell: the cell at (row, column) of sheet equals value
//   - identity_row: identity sits in the identity column of sheet at row
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory book with fixed tokens
// (sub-1, sub-2, ...). Sequential scenarios produce identical books on
// every run, which makes them suitable for golden comparison. Concurrent
// scenarios are snapshotted with rows sorted and tokens omitted.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/resubmission.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
