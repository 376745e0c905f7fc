package harness

// Trace operations.
const (
	OpBegin    = "begin"
	OpAdd      = "add"
	OpRemove   = "remove"
	OpSize     = "size"
	OpQuery    = "query"
	OpCommit   = "commit"
	OpRollback = "rollback"
)

// Step outcomes. Error outcomes match the expect_error values.
const (
	OutcomeOK           = "ok"
	OutcomeConflict     = "conflict"
	OutcomeIllegalState = "illegal_state"
	OutcomeStoreAccess  = "store_access"
	OutcomeError        = "error"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Tx      string   `json:"tx"`
	Op      string   `json:"op"`
	Args    []string `json:"args,omitempty"`
	Query   string   `json:"query,omitempty"`
	Outcome string   `json:"outcome"`

	// Count is the number of matches for size, query and remove.
	Count *int `json:"count,omitempty"`

	// Generation is the transaction snapshot for begin and the store
	// generation after commit.
	Generation *int64 `json:"generation,omitempty"`
}

// FinalState summarizes the store after the last step.
type FinalState struct {
	Generation int64 `json:"generation"`
	Size       int   `json:"size"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
