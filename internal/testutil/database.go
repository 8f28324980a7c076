package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// CreateSQLiteDB creates a small real SQLite database at path so snapshot
// tests have a valid source to copy.
func CreateSQLiteDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE entries (id INTEGER PRIMARY KEY, note TEXT)`); err != nil {
		t.Fatalf("creating test table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO entries (note) VALUES ('seed')`); err != nil {
		t.Fatalf("seeding test table: %v", err)
	}
}

// CountRows returns the number of rows in the entries table of the SQLite
// database at path, failing the test when the file is not a readable
// database.
func CountRows(t *testing.T, path string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening database %s: %v", path, err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		t.Fatalf("counting rows in %s: %v", path, err)
	}
	return n
}
