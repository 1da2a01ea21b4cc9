// Package store provides a SQLite-backed thread registry. Each conversation
// thread holds at most one ingested document and belongs to the tenant that
// first ingested into it. The registry answers ownership questions so one
// tenant cannot query or overwrite another tenant's thread.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrThreadOwned is returned when a tenant touches a thread that belongs to
// a different tenant.
var ErrThreadOwned = errors.New("store: thread is owned by another tenant")

// ThreadRecord describes the document currently held by a thread.
type ThreadRecord struct {
	// Thread is the conversation thread identifier.
	Thread string
	// Tenant is the tenant that owns the thread.
	Tenant string
	// FileName is the name of the ingested document.
	FileName string
	// IngestedAt is when the current document was ingested.
	IngestedAt time.Time
}

// ThreadRegistry tracks which tenant owns which thread and what document the
// thread holds. Implementations must be safe for concurrent use.
type ThreadRegistry interface {
	// RecordIngest registers a document for the thread, claiming the thread
	// for the tenant. Re-ingesting into a thread the tenant already owns
	// replaces the record; ingesting into another tenant's thread fails with
	// ErrThreadOwned.
	RecordIngest(ctx context.Context, thread, tenant, fileName string) error
	// Lookup returns the record for a thread, or nil if the thread is unknown.
	Lookup(ctx context.Context, thread string) (*ThreadRecord, error)
	// Authorize checks that the tenant may query the thread. Unknown threads
	// are allowed; threads owned by a different tenant fail with ErrThreadOwned.
	Authorize(ctx context.Context, thread, tenant string) error
	// Close releases any resources held by the registry.
	Close() error
}

// SQLiteRegistry is a ThreadRegistry backed by a local SQLite database.
type SQLiteRegistry struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the thread registry database.
// It resolves to ~/.crewmate/threads.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".crewmate")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "threads.db"), nil
}

// Open opens (or creates) a SQLiteRegistry at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteRegistry, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteRegistry{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteRegistry) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS threads (
    thread       TEXT PRIMARY KEY,
    tenant       TEXT    NOT NULL,
    file_name    TEXT    NOT NULL,
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_threads_tenant ON threads (tenant);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// RecordIngest registers a document for the thread. The ownership check and
// the upsert run in one transaction so two tenants racing on a fresh thread
// cannot both claim it.
func (s *SQLiteRegistry) RecordIngest(ctx context.Context, thread, tenant, fileName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record ingest: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT tenant FROM threads WHERE thread = ?`, thread).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// unclaimed thread
	case err != nil:
		return fmt.Errorf("store: record ingest: %w", err)
	case owner != tenant:
		return fmt.Errorf("store: thread %s: %w", thread, ErrThreadOwned)
	}

	const q = `
INSERT INTO threads (thread, tenant, file_name, ingested_at) VALUES (?, ?, ?, ?)
ON CONFLICT(thread) DO UPDATE SET file_name = excluded.file_name, ingested_at = excluded.ingested_at`
	if _, err := tx.ExecContext(ctx, q, thread, tenant, fileName, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: record ingest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: record ingest: %w", err)
	}
	return nil
}

// Lookup returns the record for a thread, or nil if the thread is unknown.
func (s *SQLiteRegistry) Lookup(ctx context.Context, thread string) (*ThreadRecord, error) {
	const q = `SELECT thread, tenant, file_name, ingested_at FROM threads WHERE thread = ?`
	var rec ThreadRecord
	var ts int64
	err := s.db.QueryRowContext(ctx, q, thread).Scan(&rec.Thread, &rec.Tenant, &rec.FileName, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup: %w", err)
	}
	rec.IngestedAt = time.Unix(ts, 0)
	return &rec, nil
}

// Authorize checks that the tenant may query the thread.
func (s *SQLiteRegistry) Authorize(ctx context.Context, thread, tenant string) error {
	rec, err := s.Lookup(ctx, thread)
	if err != nil {
		return err
	}
	if rec != nil && rec.Tenant != tenant {
		return fmt.Errorf("store: thread %s: %w", thread, ErrThreadOwned)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteRegistry) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
