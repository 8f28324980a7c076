// Package catalog keeps a durable record of snapshot runs in a small SQLite
// database stored inside the backup directory. It is bookkeeping only: the
// snapshot files themselves are authoritative, and the catalog tolerates
// being told about files it never saw or losing rows for files that remain.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"sdb-go/internal/catalog/migrations"
)

// FileName is the catalog's name within the backup directory.
const FileName = "catalog.db"

// Entry is one recorded snapshot run.
type Entry struct {
	ID        string
	Path      string
	SizeBytes int64
	Encrypted bool
	CreatedAt time.Time
}

// Catalog is a handle on the snapshot bookkeeping database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path and brings its schema
// up to date. path may be ":memory:" in tests.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}

	return &Catalog{db: db}, nil
}

// RecordSnapshot notes a successful snapshot run.
func (c *Catalog) RecordSnapshot(id, path string, size int64, encrypted bool, createdAt time.Time) error {
	_, err := c.db.Exec(
		`INSERT INTO snapshots (id, path, size_bytes, encrypted, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET id = excluded.id, size_bytes = excluded.size_bytes,
		 encrypted = excluded.encrypted, created_at = excluded.created_at`,
		id, path, size, boolToInt(encrypted), createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}
	return nil
}

// ForgetPath removes the record for a rotated-away snapshot file.
// Forgetting an unknown path is not an error.
func (c *Catalog) ForgetPath(path string) error {
	if _, err := c.db.Exec(`DELETE FROM snapshots WHERE path = ?`, path); err != nil {
		return fmt.Errorf("forgetting snapshot: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (c *Catalog) List(limit int) ([]*Entry, error) {
	rows, err := c.db.Query(
		`SELECT id, path, size_bytes, encrypted, created_at FROM snapshots
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var encrypted int
		if err := rows.Scan(&e.ID, &e.Path, &e.SizeBytes, &encrypted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		e.Encrypted = encrypted != 0
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot rows: %w", err)
	}
	return entries, nil
}

// Latest returns the most recent entry, or nil when the catalog is empty.
func (c *Catalog) Latest() (*Entry, error) {
	entries, err := c.List(1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
