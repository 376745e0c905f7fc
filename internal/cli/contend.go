package cli

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/occ"
	"github.com/roach88/occgraph/internal/pattern"
)

var (
	counterSubject   = ir.NewIRI("occgraph:counter")
	counterPredicate = ir.NewIRI("occgraph:value")
)

// ContendOptions holds flags for the contend command.
type ContendOptions struct {
	*RootOptions
	Workers    int
	Rounds     int
	MaxRetries int
	Metrics    bool // print the Prometheus exposition after the run
}

// ContendResult summarizes a contention run.
type ContendResult struct {
	Workers      int    `json:"workers"`
	Rounds       int    `json:"rounds"`
	Isolation    string `json:"isolation"`
	Commits      int64  `json:"commits"`
	Conflicts    int64  `json:"conflicts"`
	Initial      int64  `json:"initial"`
	Final        int64  `json:"final"`
	LostUpdates  int64  `json:"lost_updates"`
	Generation   int64  `json:"generation"`
	ElapsedMilli int64  `json:"elapsed_ms"`
}

// NewContendCommand creates the contend command.
func NewContendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "contend",
		Short: "Run a concurrent read-modify-write workload",
		Long: `Start N workers that each increment a shared counter statement M
times. Every increment reads the counter, replaces it and commits; a
conflicting commit is retried with a fresh transaction.

Under serializable isolation the final value is exact. Under snapshot
isolation concurrent increments can be lost, and the run reports how many.

Examples:
  occgraph contend --workers 8 --rounds 100
  occgraph contend --workers 8 --rounds 100 --config snapshot.yaml --metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContend(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent workers")
	cmd.Flags().IntVar(&opts.Rounds, "rounds", 50, "increments per worker")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", 1000, "conflicts tolerated per increment")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics after the run")

	return cmd
}

func runContend(opts *ContendOptions, cmd *cobra.Command) error {
	if opts.Workers < 1 || opts.Rounds < 1 {
		return NewExitError(ExitCommandError, "--workers and --rounds must be positive")
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
	res, err := contend(ctx, sess.store, opts.Workers, opts.Rounds, opts.MaxRetries)
	if err != nil {
		return f.Fail(ExitFailure, "E_WORKLOAD", "workload failed", err)
	}
	res.Isolation = sess.cfg.Isolation
	sess.logger.Info("workload finished", "commits", res.Commits, "conflicts", res.Conflicts, "lost_updates", res.LostUpdates)

	if opts.Format == "json" {
		if err := f.Success(res); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Workers:      %d x %d rounds (%s)\n", res.Workers, res.Rounds, res.Isolation)
		fmt.Fprintf(w, "Commits:      %d\n", res.Commits)
		fmt.Fprintf(w, "Conflicts:    %d\n", res.Conflicts)
		fmt.Fprintf(w, "Counter:      %d -> %d\n", res.Initial, res.Final)
		fmt.Fprintf(w, "Lost updates: %d\n", res.LostUpdates)
		fmt.Fprintf(w, "Generation:   %d\n", res.Generation)
	}

	if opts.Metrics {
		if err := writeMetrics(f.GetErrWriter(), sess.reg); err != nil {
			return WrapExitError(ExitFailure, "failed to write metrics", err)
		}
	}
	return nil
}

// contend runs the increment workload and reads back the counter.
func contend(ctx context.Context, st *occ.Store, workers, rounds, maxRetries int) (ContendResult, error) {
	res := ContendResult{Workers: workers, Rounds: rounds}
	start := time.Now()

	initial, err := readCounter(ctx, st)
	if err != nil {
		return res, err
	}
	res.Initial = initial

	var commits, conflicts atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				n, err := incrementWithRetry(gctx, st, maxRetries)
				conflicts.Add(int64(n))
				if err != nil {
					return err
				}
				commits.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	final, err := readCounter(ctx, st)
	if err != nil {
		return res, err
	}
	res.Commits = commits.Load()
	res.Conflicts = conflicts.Load()
	res.Final = final
	res.LostUpdates = initial + res.Commits - final
	res.Generation = st.Generation()
	res.ElapsedMilli = time.Since(start).Milliseconds()
	return res, nil
}

// incrementWithRetry retries increment until it commits and returns the
// number of conflicts seen.
func incrementWithRetry(ctx context.Context, st *occ.Store, maxRetries int) (int, error) {
	for attempt := 0; ; attempt++ {
		err := increment(ctx, st)
		if err == nil {
			return attempt, nil
		}
		if !occ.IsConflict(err) {
			return attempt, err
		}
		if attempt >= maxRetries {
			return attempt + 1, fmt.Errorf("gave up after %d conflicts: %w", attempt+1, err)
		}
	}
}

func increment(ctx context.Context, st *occ.Store) error {
	tx, err := st.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	v, err := counterValue(ctx, tx)
	if err != nil {
		return err
	}
	if _, err := tx.Remove(ctx, pattern.FromTerms(counterSubject, counterPredicate, nil, nil)); err != nil {
		return err
	}
	if err := tx.Add(ir.NewStatement(counterSubject, counterPredicate, ir.Int(v+1))); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// counterValue reads the counter inside tx. A missing counter is 0.
func counterValue(ctx context.Context, tx *occ.Transaction) (int64, error) {
	solutions, err := tx.Evaluate(ctx, pattern.NewBasic(
		pattern.New(pattern.C(counterSubject), pattern.C(counterPredicate), pattern.V("v")),
	))
	if err != nil {
		return 0, err
	}
	var v int64
	for _, sol := range solutions {
		n, ok := sol["v"].(ir.Int)
		if !ok {
			return 0, fmt.Errorf("counter holds %s, not an integer", sol["v"])
		}
		v = max(v, int64(n))
	}
	return v, nil
}

func readCounter(ctx context.Context, st *occ.Store) (int64, error) {
	tx, err := st.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Close()
	v, err := counterValue(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return v, nil
}

// writeMetrics prints the registry in the Prometheus text format.
func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
