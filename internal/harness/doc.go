// Package harness provides conformance testing for the variation resolver.
//
// The harness loads a product definition, drives a real resolver through a
// sequence of selection changes and probes, and checks each step's outcome
// against the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	product: ../products/paint.cue   # relative to the scenario file
//	product_id: paint                # optional when the file defines one product
//	initial_variation: 101           # optional, default: first variation
//	steps:
//	  - select_unit: 2
//	    expect:
//	      variation: 103
//	      repaired: true
//	      notices: ["Color is not available for this combination."]
//	  - probe_attribute: { attribute: 1, value: 12 }
//	    expect:
//	      valid: false
//	assertions:
//	  - type: variation_order
//	    variations: [101, 103]
//	  - type: final_state
//	    unit: 2
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - warning_contains: some warning contains the given text
//   - variation_order: variations were committed in the given order
//   - commit_count: the number of commits, optionally of one variation
//   - final_state: the selection store holds the given selection and unit
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock and view token so that
// traces are reproducible and can be compared against golden files.
//
// The harness uses:
//   - Fixed view tokens (from scenario.view_token or "test-view-default")
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - The English message catalog for notices
//   - Detail loads drained after every step, so only the latest is delivered
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/paint_unit_switch.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
