// Package store provides the FactStore: committed statements with
// multi-version history, queried at a generation.
//
// Every successful Apply produces exactly one new generation. Each stored
// version records the generation that added it and, once deleted, the
// generation that removed it. A version is visible at generation g when
//
//	added_gen <= g AND (removed_gen IS NULL OR removed_gen > g)
//
// so readers pinned to an older generation keep a stable view while
// writers move ahead. Compact discards versions that no open reader can
// see any more; reading below the compaction horizon fails with
// ErrCompacted.
//
// Two implementations share one contract:
//   - MemoryStore: ordered google/btree indexes, process lifetime only
//   - SQLiteStore: durable, WAL mode, embedded schema with migrations
//
// # Database Configuration (SQLiteStore)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Term columns hold RFC 8785 canonical JSON (ir.EncodeTerm), so equal
// terms always compare equal as TEXT.
package store
