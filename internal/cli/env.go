package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/occgraph/internal/config"
	"github.com/roach88/occgraph/internal/occ"
	"github.com/roach88/occgraph/internal/store"
)

// loadConfig reads --config (or the defaults) and applies --db.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if o.Database != "" {
		cfg.Backend = config.BackendSQLite
		cfg.Database = o.Database
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. --verbose forces debug level.
func (o *RootOptions) newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session is an open FactStore with an occ.Store over it.
type session struct {
	cfg    config.Config
	facts  store.FactStore
	store  *occ.Store
	logger *slog.Logger
	reg    *prometheus.Registry
}

// openSession opens the configured store. Close releases it.
func (o *RootOptions) openSession(ctx context.Context, logw io.Writer, extra ...occ.Option) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(logw, cfg)

	facts, err := cfg.OpenFactStore()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	opts, err := cfg.StoreOptions(logger)
	if err != nil {
		facts.Close()
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	reg := prometheus.NewRegistry()
	opts = append(opts, occ.WithRegisterer(reg))
	opts = append(opts, extra...)

	st, err := occ.New(ctx, facts, opts...)
	if err != nil {
		facts.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	logger.Debug("store opened", "backend", cfg.Backend, "generation", st.Generation())
	return &session{cfg: cfg, facts: facts, store: st, logger: logger, reg: reg}, nil
}

func (s *session) Close() {
	s.store.Shutdown()
	if err := s.facts.Close(); err != nil {
		s.logger.Error("error closing store", "error", err)
	}
}
