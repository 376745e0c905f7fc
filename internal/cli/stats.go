package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/occgraph/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Limit int // most recent commits to show, 0 for all
}

// StatsResult describes the store.
type StatsResult struct {
	Backend    string               `json:"backend"`
	Generation int64                `json:"generation"`
	Statements int64                `json:"statements"`
	Commits    []store.CommitRecord `json:"commits"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation, statement count and commit log",
		Long: `Show the latest generation, the number of live statements and the
per-generation commit log.

Example:
  occgraph stats --db ./occgraph.db --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent N commits")
	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must be non-negative")
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

	res, err := collectStats(ctx, sess)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read store", err)
	}
	if opts.Limit > 0 && len(res.Commits) > opts.Limit {
		res.Commits = res.Commits[len(res.Commits)-opts.Limit:]
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.Success(res)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Backend:    %s\n", res.Backend)
	fmt.Fprintf(w, "Generation: %d\n", res.Generation)
	fmt.Fprintf(w, "Statements: %d\n", res.Statements)
	if len(res.Commits) > 0 {
		fmt.Fprintln(w, "Commits:")
		for _, c := range res.Commits {
			fmt.Fprintf(w, "  %6d  +%d -%d\n", c.Generation, c.Added, c.Removed)
		}
	}
	return nil
}

func collectStats(ctx context.Context, sess *session) (StatsResult, error) {
	gen := sess.store.Generation()
	n, err := sess.facts.Count(ctx, gen)
	if err != nil {
		return StatsResult{}, err
	}
	commits, err := sess.facts.Commits(ctx)
	if err != nil {
		return StatsResult{}, err
	}
	if commits == nil {
		commits = []store.CommitRecord{}
	}
	return StatsResult{Backend: sess.cfg.Backend, Generation: gen, Statements: n, Commits: commits}, nil
}
