// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"keyauth/internal/platform/database"
)

// New returns a private, fully migrated in-memory database. A single
// connection is used so concurrent callers serialize like they would on a
// locked SQLite file.
func New(t testing.TB) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate db: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
