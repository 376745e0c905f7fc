package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/occgraph/internal/occ"
)

// Scenario is a scripted interleaving of transactions over one store.
//
// Steps run in order on a single goroutine, so the interleaving is
// exactly as written.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Isolation for every transaction: serializable (default) or snapshot.
	Isolation string `yaml:"isolation,omitempty"`

	// Queries is a query document (.cue or .yaml) whose named queries
	// steps may evaluate. Relative to the scenario file.
	Queries string `yaml:"queries,omitempty"`

	// Seed statements are committed as generation 1 before any step.
	Seed [][]any `yaml:"seed,omitempty"`

	// Steps is the interleaving.
	Steps []Step `yaml:"steps"`

	// FinalSize is the expected number of statements after the last step.
	FinalSize *int `yaml:"final_size,omitempty"`

	// Assertions validate the final store and trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation by one named transaction. Exactly one operation
// field is set.
type Step struct {
	Tx string `yaml:"tx"`

	Begin    bool   `yaml:"begin,omitempty"`
	Add      []any  `yaml:"add,omitempty"`
	Remove   []any  `yaml:"remove,omitempty"`
	Size     []any  `yaml:"size,omitempty"`
	Query    string `yaml:"query,omitempty"`
	Commit   bool   `yaml:"commit,omitempty"`
	Rollback bool   `yaml:"rollback,omitempty"`

	// Bindings fix query variables before evaluation.
	Bindings map[string]any `yaml:"bindings,omitempty"`

	// ExpectCount checks the match count of size, query and remove.
	ExpectCount *int `yaml:"expect_count,omitempty"`

	// ExpectError is the expected failure outcome: conflict,
	// illegal_state or store_access. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Op returns the step's operation name.
func (s Step) Op() string {
	switch {
	case s.Begin:
		return OpBegin
	case s.Add != nil:
		return OpAdd
	case s.Remove != nil:
		return OpRemove
	case s.Size != nil:
		return OpSize
	case s.Query != "":
		return OpQuery
	case s.Commit:
		return OpCommit
	case s.Rollback:
		return OpRollback
	}
	return ""
}

// Assertion validates the final store or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "contains": Statement is present at the final generation
	// - "absent": Statement is not present
	// - "count": Pattern matches exactly Count statements
	// - "generation": Final generation equals Generation
	// - "trace_count": Exactly Count steps have Outcome
	Type string `yaml:"type"`

	// Statement is a 3 or 4 term row (contains, absent).
	Statement []any `yaml:"statement,omitempty"`

	// Pattern is a row where "*" is a wildcard (count).
	Pattern []any `yaml:"pattern,omitempty"`

	Count int `yaml:"count,omitempty"`

	Generation int64 `yaml:"generation,omitempty"`

	// Outcome is the step outcome to count (trace_count).
	Outcome string `yaml:"outcome,omitempty"`
}

// Assertion type constants.
const (
	AssertContains   = "contains"
	AssertAbsent     = "absent"
	AssertCount      = "count"
	AssertGeneration = "generation"
	AssertTraceCount = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The queries path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Queries != "" && !filepath.IsAbs(scenario.Queries) {
		scenario.Queries = filepath.Join(filepath.Dir(path), scenario.Queries)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate required fields
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that
// every step is well formed.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if _, err := occ.ParseIsolation(s.Isolation); err != nil {
		return fmt.Errorf("isolation: %w", err)
	}

	for i, row := range s.Seed {
		if _, err := ParseStatement(row); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}

	begun := map[string]bool{}
	for i, step := range s.Steps {
		if err := validateStep(i, step, begun, s.Queries != ""); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, begun map[string]bool, haveQueries bool) error {
	if step.Tx == "" {
		return fmt.Errorf("steps[%d]: tx is required", index)
	}

	ops := 0
	for _, set := range []bool{step.Begin, step.Add != nil, step.Remove != nil, step.Size != nil, step.Query != "", step.Commit, step.Rollback} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one operation is required, got %d", index, ops)
	}

	op := step.Op()
	if op == OpBegin {
		if begun[step.Tx] {
			return fmt.Errorf("steps[%d]: transaction %q already begun", index, step.Tx)
		}
		begun[step.Tx] = true
	} else if !begun[step.Tx] {
		return fmt.Errorf("steps[%d]: transaction %q used before begin", index, step.Tx)
	}

	switch op {
	case OpAdd:
		if _, err := ParseStatement(step.Add); err != nil {
			return fmt.Errorf("steps[%d].add: %w", index, err)
		}
	case OpRemove:
		if _, err := ParsePattern(step.Remove); err != nil {
			return fmt.Errorf("steps[%d].remove: %w", index, err)
		}
	case OpSize:
		if _, err := ParsePattern(step.Size); err != nil {
			return fmt.Errorf("steps[%d].size: %w", index, err)
		}
	case OpQuery:
		if !haveQueries {
			return fmt.Errorf("steps[%d]: query %q needs a queries file", index, step.Query)
		}
	}

	if step.ExpectCount != nil && op != OpSize && op != OpQuery && op != OpRemove {
		return fmt.Errorf("steps[%d]: expect_count only applies to size, query and remove", index)
	}
	if step.Bindings != nil && op != OpQuery {
		return fmt.Errorf("steps[%d]: bindings only apply to query", index)
	}
	switch step.ExpectError {
	case "", OutcomeConflict, OutcomeIllegalState, OutcomeStoreAccess:
	default:
		return fmt.Errorf("steps[%d]: unknown expect_error %q", index, step.ExpectError)
	}
	return nil
}

// validateAssertion checks assertion-specific required fields.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertContains, AssertAbsent:
		if _, err := ParseStatement(a.Statement); err != nil {
			return fmt.Errorf("assertions[%d]: statement: %w", index, err)
		}
	case AssertCount:
		if _, err := ParsePattern(a.Pattern); err != nil {
			return fmt.Errorf("assertions[%d]: pattern: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertGeneration:
	case AssertTraceCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for trace_count", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
