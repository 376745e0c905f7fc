package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added UNIQUE partial index on live statements
const currentSchemaVersion = 1

// SQLiteStore is a durable FactStore.
// Uses SQLite with WAL mode for concurrent read access.
type SQLiteStore struct {
	db      *sql.DB
	horizon atomic.Int64
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	var horizon int64
	if err := db.QueryRow(`SELECT value FROM store_meta WHERE key = 'horizon'`).Scan(&horizon); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read horizon: %w", err)
	}
	s.horizon.Store(horizon)
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using SQLiteStore methods when available.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Generation returns the latest committed generation.
func (s *SQLiteStore) Generation(ctx context.Context) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'generation'`).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	return gen, nil
}

// Match returns statements visible at gen matching p's constant slots.
func (s *SQLiteStore) Match(ctx context.Context, gen int64, p pattern.Pattern) ([]ir.Statement, error) {
	if err := s.checkHorizon(gen); err != nil {
		return nil, err
	}

	where, args, err := matchClause(p)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	query := `
		SELECT subject, predicate, object, context
		FROM statements
		WHERE added_gen <= ? AND (removed_gen IS NULL OR removed_gen > ?)` + where
	args = append([]any{gen, gen}, args...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}
	defer rows.Close()

	var out []ir.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		if p.Matches(st) {
			out = append(out, st)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statements: %w", err)
	}

	ir.SortStatements(out)
	return out, nil
}

// matchClause builds the AND conditions for a pattern's constant slots.
func matchClause(p pattern.Pattern) (string, []any, error) {
	columns := [4]string{"subject", "predicate", "object", "context"}
	var b strings.Builder
	var args []any
	for i, slot := range p.Slots() {
		switch sl := slot.(type) {
		case pattern.Const:
			enc, err := ir.EncodeTerm(sl.Value)
			if err != nil {
				return "", nil, err
			}
			b.WriteString(" AND " + columns[i] + " = ?")
			args = append(args, enc)
		case pattern.Var:
			if i == 3 {
				b.WriteString(" AND context != ''")
			}
		}
	}
	return b.String(), args, nil
}

// Apply commits one generation inside a single SQL transaction.
func (s *SQLiteStore) Apply(ctx context.Context, added, removed []ir.Statement) (gen int64, err error) {
	if err := validateBatch(added, removed); err != nil {
		return 0, fmt.Errorf("apply: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin apply: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'generation'`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	next := current + 1

	rec := CommitRecord{Generation: next}
	for _, st := range removed {
		id, err := ir.StatementID(st)
		if err != nil {
			return 0, fmt.Errorf("apply: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE statements SET removed_gen = ?
			WHERE id = ? AND removed_gen IS NULL
		`, next, id)
		if err != nil {
			return 0, fmt.Errorf("remove statement: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("remove statement: %w", err)
		}
		rec.Removed += int(n)
	}

	for _, st := range added {
		n, err := insertStatement(ctx, tx, st, next)
		if err != nil {
			return 0, err
		}
		rec.Added += int(n)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE store_meta SET value = ? WHERE key = 'generation'`, next); err != nil {
		return 0, fmt.Errorf("advance generation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO commits (generation, added_count, removed_count) VALUES (?, ?, ?)
	`, rec.Generation, rec.Added, rec.Removed); err != nil {
		return 0, fmt.Errorf("record commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit apply: %w", err)
	}
	return next, nil
}

// insertStatement adds a live version unless one already exists.
// Returns the number of rows inserted (0 or 1).
func insertStatement(ctx context.Context, tx *sql.Tx, st ir.Statement, gen int64) (int64, error) {
	id, err := ir.StatementID(st)
	if err != nil {
		return 0, fmt.Errorf("apply: %w", err)
	}
	terms, err := encodeStatement(st)
	if err != nil {
		return 0, fmt.Errorf("apply: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO statements (id, subject, predicate, object, context, added_gen)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM statements WHERE id = ? AND removed_gen IS NULL
		)
	`, id, terms[0], terms[1], terms[2], terms[3], gen, id)
	if err != nil {
		return 0, fmt.Errorf("insert statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert statement: %w", err)
	}
	return n, nil
}

// Count returns the number of statements visible at gen.
func (s *SQLiteStore) Count(ctx context.Context, gen int64) (int64, error) {
	if err := s.checkHorizon(gen); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM statements
		WHERE added_gen <= ? AND (removed_gen IS NULL OR removed_gen > ?)
	`, gen, gen).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count statements: %w", err)
	}
	return n, nil
}

// Compact deletes versions removed at or before the given generation.
func (s *SQLiteStore) Compact(ctx context.Context, before int64) (err error) {
	if before <= s.horizon.Load() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin compact: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM statements WHERE removed_gen IS NOT NULL AND removed_gen <= ?
	`, before); err != nil {
		return fmt.Errorf("compact statements: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE store_meta SET value = ? WHERE key = 'horizon' AND value < ?
	`, before, before); err != nil {
		return fmt.Errorf("advance horizon: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit compact: %w", err)
	}
	s.horizon.Store(before)
	return nil
}

// Commits returns the commit log ordered by generation.
func (s *SQLiteStore) Commits(ctx context.Context) ([]CommitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT generation, added_count, removed_count
		FROM commits
		ORDER BY generation ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	records := []CommitRecord{}
	for rows.Next() {
		var rec CommitRecord
		if err := rows.Scan(&rec.Generation, &rec.Added, &rec.Removed); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) checkHorizon(gen int64) error {
	if h := s.horizon.Load(); gen < h {
		return fmt.Errorf("%w: generation %d is below horizon %d", ErrCompacted, gen, h)
	}
	return nil
}

// scanStatement decodes one row of term columns.
func scanStatement(rows *sql.Rows) (ir.Statement, error) {
	var cols [4]string
	if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3]); err != nil {
		return ir.Statement{}, fmt.Errorf("scan statement: %w", err)
	}
	var terms [4]ir.Term
	for i, c := range cols {
		t, err := ir.DecodeTerm(c)
		if err != nil {
			return ir.Statement{}, fmt.Errorf("scan statement: %w", err)
		}
		terms[i] = t
	}
	if terms[0] == nil || terms[1] == nil || terms[2] == nil {
		return ir.Statement{}, errors.New("scan statement: empty term column")
	}
	return ir.Statement{Subject: terms[0], Predicate: terms[1], Object: terms[2], Context: terms[3]}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 enforces at most one live version per statement.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_statements_live
		ON statements(id) WHERE removed_gen IS NULL
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
