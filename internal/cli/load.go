package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/occgraph/internal/harness"
	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/occ"
	"github.com/roach88/occgraph/internal/pattern"
)

// DataFile is a batch of changes applied in one transaction.
//
//	remove:
//	  - ["*", ex:year, "*"]
//	statements:
//	  - [ex:Rembrandt, rdf:type, ex:Painter]
//	  - [ex:NightWatch, ex:year, 1642]
//
// Removals run before additions.
type DataFile struct {
	Statements [][]any `yaml:"statements"`
	Remove     [][]any `yaml:"remove,omitempty"`
}

// LoadResult reports an applied data file.
type LoadResult struct {
	File       string `json:"file"`
	TxID       string `json:"tx_id"`
	Added      int    `json:"added"`
	Removed    int    `json:"removed"`
	Generation int64  `json:"generation"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <file.yaml>",
		Short: "Load statements in one transaction",
		Long: `Apply a YAML data file as a single transaction.

The file lists statements to add and, optionally, patterns to remove.
Rows use the scenario term syntax: plain strings are IRIs, strings in
double quotes are text, integers and booleans are themselves.

Example:
  occgraph load --db ./occgraph.db testdata/data/painters.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	data, err := ReadDataFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read data file", err)
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

	f := opts.formatter(cmd)
	res, err := applyData(ctx, sess.store, data)
	if err != nil {
		return f.Fail(ExitFailure, "E_LOAD", "load failed", err)
	}
	res.File = path
	sess.logger.Info("data loaded", "file", path, "tx", res.TxID, "generation", res.Generation)

	if opts.Format == "json" {
		return f.Success(res)
	}
	return f.Success(fmt.Sprintf("Loaded %s: +%d -%d (generation %d)", path, res.Added, res.Removed, res.Generation))
}

// ReadDataFile parses and validates a data file.
func ReadDataFile(path string) (*DataFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data DataFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(data.Statements) == 0 && len(data.Remove) == 0 {
		return nil, fmt.Errorf("%s: no statements or removals", path)
	}
	return &data, nil
}

// applyData stages the file's changes in one transaction and commits it.
func applyData(ctx context.Context, st *occ.Store, data *DataFile) (LoadResult, error) {
	stmts := make([]ir.Statement, len(data.Statements))
	for i, row := range data.Statements {
		s, err := harness.ParseStatement(row)
		if err != nil {
			return LoadResult{}, fmt.Errorf("statements[%d]: %w", i, err)
		}
		stmts[i] = s
	}
	removals := make([]pattern.Pattern, len(data.Remove))
	for i, row := range data.Remove {
		p, err := harness.ParsePattern(row)
		if err != nil {
			return LoadResult{}, fmt.Errorf("remove[%d]: %w", i, err)
		}
		removals[i] = p
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		return LoadResult{}, err
	}
	defer tx.Close()

	for _, p := range removals {
		if _, err := tx.Remove(ctx, p); err != nil {
			return LoadResult{}, err
		}
	}
	for _, s := range stmts {
		if err := tx.Add(s); err != nil {
			return LoadResult{}, err
		}
	}
	res := LoadResult{TxID: tx.ID(), Added: len(tx.Added()), Removed: len(tx.Removed())}
	if err := tx.Commit(ctx); err != nil {
		return LoadResult{}, err
	}
	res.Generation = st.Generation()
	return res, nil
}
