package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/occgraph/internal/compiler"
	"github.com/roach88/occgraph/internal/occ"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/store"
)

// Harness is the test execution engine.
// It drives one occ.Store through a scenario's steps.
type Harness struct {
	facts   store.FactStore
	store   *occ.Store
	queries []*compiler.Query
	txs     map[string]*occ.Transaction
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory FactStore.
//
// Execution flow:
// 1. Create the FactStore and commit the seed as generation 1
// 2. Load the scenario's query file, if any
// 3. Execute steps, checking expect_count and expect_error
// 4. Evaluate final_size and assertions
//
// Expectation failures are recorded in the Result. Run returns an error
// only when the scenario cannot be executed at all.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	facts := store.NewMemoryStore()
	defer facts.Close()

	if len(scenario.Seed) > 0 {
		seed, err := seedStatements(scenario.Seed)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		if _, err := facts.Apply(ctx, seed, nil); err != nil {
			return nil, fmt.Errorf("failed to apply seed: %w", err)
		}
	}

	var queries []*compiler.Query
	if scenario.Queries != "" {
		qs, err := compiler.LoadFile(scenario.Queries)
		if err != nil {
			return nil, fmt.Errorf("failed to load queries: %w", err)
		}
		queries = qs
	}

	iso, err := occ.ParseIsolation(scenario.Isolation)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	st, err := occ.New(ctx, facts,
		occ.WithIDGenerator(occ.NewFixedGenerator(txNames(scenario.Steps)...)),
		occ.WithIsolation(iso),
		occ.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open occ store: %w", err)
	}
	defer st.Shutdown()

	h := &Harness{
		facts:   facts,
		store:   st,
		queries: queries,
		txs:     map[string]*occ.Transaction{},
		logger:  logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	result.Final.Generation = st.Generation()
	size, err := st.Size(ctx, pattern.New(pattern.Any(), pattern.Any(), pattern.Any()))
	if err != nil {
		return nil, fmt.Errorf("failed to size final store: %w", err)
	}
	result.Final.Size = size

	if scenario.FinalSize != nil && *scenario.FinalSize != size {
		result.AddError(fmt.Sprintf("final_size: expected %d, got %d", *scenario.FinalSize, size))
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// txNames lists transaction names in begin order.
func txNames(steps []Step) []string {
	var names []string
	for _, s := range steps {
		if s.Begin {
			names = append(names, s.Tx)
		}
	}
	return names
}

// executeStep runs one step and appends its trace event. Unexpected
// outcomes are recorded as result errors.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	ev := TraceEvent{Tx: step.Tx, Op: step.Op(), Outcome: OutcomeOK}

	if _, ok := h.txs[step.Tx]; !ok && ev.Op != OpBegin {
		return fmt.Errorf("transaction %q used before begin", step.Tx)
	}

	var opErr error
	switch ev.Op {
	case OpBegin:
		tx, err := h.store.Begin(ctx)
		if err != nil {
			return err
		}
		h.txs[step.Tx] = tx
		gen := tx.Snapshot()
		ev.Generation = &gen

	case OpAdd:
		st, err := ParseStatement(step.Add)
		if err != nil {
			return err
		}
		ev.Args = displayRow(step.Add)
		opErr = h.txs[step.Tx].Add(st)

	case OpRemove:
		p, err := ParsePattern(step.Remove)
		if err != nil {
			return err
		}
		ev.Args = displayRow(step.Remove)
		n, err := h.txs[step.Tx].Remove(ctx, p)
		opErr = err
		if err == nil {
			ev.Count = &n
		}

	case OpSize:
		p, err := ParsePattern(step.Size)
		if err != nil {
			return err
		}
		ev.Args = displayRow(step.Size)
		n, err := h.txs[step.Tx].Size(ctx, p)
		opErr = err
		if err == nil {
			ev.Count = &n
		}

	case OpQuery:
		q, err := compiler.Find(h.queries, step.Query)
		if err != nil {
			return err
		}
		bindings, err := ParseBindings(step.Bindings)
		if err != nil {
			return err
		}
		if q.Bindings != nil {
			bindings = q.Bindings.Merge(bindings)
		}
		ev.Query = step.Query
		solutions, err := h.txs[step.Tx].Evaluate(ctx, q.Pattern,
			occ.WithBindings(bindings), occ.WithInferred(q.Inferred))
		opErr = err
		if err == nil {
			n := len(solutions)
			ev.Count = &n
		}

	case OpCommit:
		opErr = h.txs[step.Tx].Commit(ctx)
		if opErr == nil {
			gen := h.store.Generation()
			ev.Generation = &gen
		}

	case OpRollback:
		opErr = h.txs[step.Tx].Rollback()

	default:
		return fmt.Errorf("no operation for tx %q", step.Tx)
	}

	ev.Outcome = outcomeOf(opErr)
	result.AddTrace(ev)

	switch {
	case step.ExpectError != "" && ev.Outcome != step.ExpectError:
		result.AddError(fmt.Sprintf("step %d (%s %s): expected %s, got %s", index, step.Tx, ev.Op, step.ExpectError, ev.Outcome))
	case step.ExpectError == "" && opErr != nil:
		result.AddError(fmt.Sprintf("step %d (%s %s): %v", index, step.Tx, ev.Op, opErr))
	}
	if step.ExpectCount != nil && (ev.Count == nil || *ev.Count != *step.ExpectCount) {
		got := "none"
		if ev.Count != nil {
			got = fmt.Sprint(*ev.Count)
		}
		result.AddError(fmt.Sprintf("step %d (%s %s): expected count %d, got %s", index, step.Tx, ev.Op, *step.ExpectCount, got))
	}

	h.logger.Info("step completed",
		"step", index,
		"tx", step.Tx,
		"op", ev.Op,
		"outcome", ev.Outcome,
	)
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case occ.IsConflict(err):
		return OutcomeConflict
	case occ.IsIllegalState(err):
		return OutcomeIllegalState
	case occ.IsStoreAccess(err):
		return OutcomeStoreAccess
	}
	var txErr *occ.TxError
	if errors.As(err, &txErr) {
		return string(txErr.Code)
	}
	return OutcomeError
}
