// Package harness runs scripted transaction interleavings against an
// occ.Store and records a deterministic trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: read_gated_conflict
//	description: "A write that changes a read's result aborts the reader"
//	isolation: serializable
//	queries: ../queries/painters.cue
//	seed:
//	  - [ex:Rembrandt, rdf:type, ex:Painter]
//	steps:
//	  - {tx: A, begin: true}
//	  - {tx: B, begin: true}
//	  - {tx: A, add: [ex:Picasso, rdf:type, ex:Painter]}
//	  - {tx: B, size: ["*", rdf:type, ex:Painter], expect_count: 1}
//	  - {tx: B, query: painters, expect_count: 1}
//	  - {tx: A, commit: true}
//	  - {tx: B, add: [ex:Vermeer, rdf:type, ex:Painter]}
//	  - {tx: B, commit: true, expect_error: conflict}
//	final_size: 2
//	assertions:
//	  - {type: contains, statement: [ex:Picasso, rdf:type, ex:Painter]}
//	  - {type: trace_count, outcome: conflict, count: 1}
//
// Rows are terms: a plain string is an IRI, a string wrapped in double
// quotes is text, integers and booleans are themselves. Pattern rows
// (remove, size, count) also accept "*" for a wildcard, "?x" for a
// variable and "@default" for the default graph.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - contains: a statement is present after the last step
//   - absent: a statement is not present after the last step
//   - count: a pattern matches exactly N statements
//   - generation: the final generation equals N
//   - trace_count: exactly N steps ended with the given outcome
//
// # Deterministic Testing
//
// Steps run in script order on one goroutine. Transaction ids come from
// occ.FixedGenerator seeded with the transaction names in begin order, so
// a trace names transactions as the script does and is identical across
// runs. Each scenario gets a fresh in-memory FactStore.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/read_gated_conflict.yaml")
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
