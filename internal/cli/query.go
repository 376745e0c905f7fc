package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/occgraph/internal/compiler"
	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/occ"
	"github.com/roach88/occgraph/internal/pattern"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Name  string   // evaluate only this query
	Binds []string // name=term
	Data  string   // data file loaded before evaluation
}

// QueryResult holds one evaluated query.
type QueryResult struct {
	Name      string              `json:"name"`
	Snapshot  int64               `json:"snapshot"`
	Solutions []map[string]string `json:"solutions"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <queries.cue|yaml>",
		Short: "Evaluate compiled queries",
		Long: `Compile a query document and evaluate its queries in one read-only
transaction. Solutions are printed in a deterministic order.

Examples:
  occgraph query --db ./occgraph.db testdata/queries/painters.cue
  occgraph query --data testdata/data/painters.yaml --name rembrandt testdata/queries/painters.cue
  occgraph query --db ./occgraph.db --bind painter=ex:Vermeer --name painters q.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "evaluate only the named query")
	cmd.Flags().StringArrayVar(&opts.Binds, "bind", nil, "bind a variable (name=term), repeatable")
	cmd.Flags().StringVar(&opts.Data, "data", "", "data file to load before evaluating")

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
	queries, err := compiler.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile queries", err)
	}
	if opts.Name != "" {
		q, err := compiler.Find(queries, opts.Name)
		if err != nil {
			return WrapExitError(ExitCommandError, "query not found", err)
		}
		queries = []*compiler.Query{q}
	}
	for _, q := range queries {
		if errs := compiler.Validate(q); len(errs) > 0 {
			return WrapExitError(ExitCommandError, fmt.Sprintf("query %s is invalid", q.Name), errs[0])
		}
	}

	f := opts.formatter(cmd)
	f.VerboseLog("compiled %d queries from %s", len(queries), path)

	binds, err := parseBindFlags(opts.Binds)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --bind", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := opts.openSession(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	if opts.Data != "" {
		data, err := ReadDataFile(opts.Data)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read data file", err)
		}
		if _, err := applyData(ctx, sess.store, data); err != nil {
			return WrapExitError(ExitFailure, "load failed", err)
		}
	}

	results, err := evaluateQueries(ctx, sess.store, queries, binds)
	if err != nil {
		return f.Fail(ExitFailure, "E_QUERY", "query failed", err)
	}

	if opts.Format == "json" {
		return f.Success(results)
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(w, "%s (%d solutions at generation %d)\n", r.Name, len(r.Solutions), r.Snapshot)
		for _, sol := range r.Solutions {
			fmt.Fprintf(w, "  %s\n", formatSolution(sol))
		}
	}
	return nil
}

// evaluateQueries runs every query in one read-only transaction.
func evaluateQueries(ctx context.Context, st *occ.Store, queries []*compiler.Query, binds pattern.Bindings) ([]QueryResult, error) {
	tx, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Close()

	results := make([]QueryResult, 0, len(queries))
	for _, q := range queries {
		b := q.Bindings.Merge(binds)
		solutions, err := tx.Evaluate(ctx, q.Pattern, occ.WithBindings(b), occ.WithInferred(q.Inferred))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.Name, err)
		}
		pattern.SortBindings(solutions)

		r := QueryResult{Name: q.Name, Snapshot: tx.Snapshot(), Solutions: make([]map[string]string, len(solutions))}
		for i, sol := range solutions {
			row := make(map[string]string, len(sol))
			for name, t := range sol {
				row[name] = t.String()
			}
			r.Solutions[i] = row
		}
		results = append(results, r)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// parseBindFlags parses name=term pairs. Integers and true/false become
// Int and Bool terms; other values follow the scenario term syntax.
func parseBindFlags(flags []string) (pattern.Bindings, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	b := pattern.Bindings{}
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		name = strings.TrimPrefix(name, "?")
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("%q: expected name=term", f)
		}
		var raw any = value
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			raw = n
		} else if value == "true" || value == "false" {
			raw = value == "true"
		}
		t, err := ir.TermFromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		b[name] = t
	}
	return b, nil
}

func formatSolution(sol map[string]string) string {
	parts := make([]string, 0, len(sol))
	for _, name := range slices.Sorted(maps.Keys(sol)) {
		parts = append(parts, "?"+name+"="+sol[name])
	}
	return strings.Join(parts, " ")
}
