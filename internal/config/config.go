// Package config loads occgraph.yaml.
//
// The file is parsed with yaml.v3 and then unified with an embedded CUE
// definition, which supplies defaults and rejects unknown keys and
// values.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/occgraph/internal/occ"
	"github.com/roach88/occgraph/internal/store"
)

//go:embed schema.cue
var schemaCUE []byte

// Backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the validated configuration.
type Config struct {
	Backend   string `json:"backend" yaml:"backend"`
	Database  string `json:"database,omitempty" yaml:"database,omitempty"`
	Isolation string `json:"isolation" yaml:"isolation"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Backend:   BackendMemory,
		Isolation: string(occ.IsolationSerializable),
		LogLevel:  "info",
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates YAML configuration data and applies defaults.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return fromValues(raw)
}

// Validate re-checks a Config built in code, e.g. after flag overrides.
func (c Config) Validate() error {
	raw := map[string]any{
		"backend":   c.Backend,
		"isolation": c.Isolation,
		"log_level": c.LogLevel,
	}
	if c.Database != "" {
		raw["database"] = c.Database
	}
	_, err := fromValues(raw)
	return err
}

func fromValues(raw map[string]any) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", firstError(err))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func firstError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}

// Level returns the slog level for LogLevel.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// OpenFactStore opens the configured backend. The caller closes it.
func (c Config) OpenFactStore() (store.FactStore, error) {
	switch c.Backend {
	case BackendMemory, "":
		return store.NewMemoryStore(), nil
	case BackendSQLite:
		if c.Database == "" {
			return nil, errors.New("sqlite backend requires a database path")
		}
		s, err := store.Open(c.Database)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", c.Database, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", c.Backend)
}

// StoreOptions returns the occ.Store options the configuration selects.
func (c Config) StoreOptions(logger *slog.Logger) ([]occ.Option, error) {
	iso, err := occ.ParseIsolation(c.Isolation)
	if err != nil {
		return nil, err
	}
	opts := []occ.Option{occ.WithIsolation(iso)}
	if logger != nil {
		opts = append(opts, occ.WithLogger(logger))
	}
	return opts, nil
}
