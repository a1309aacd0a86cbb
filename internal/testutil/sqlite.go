package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// SQLite returns a fixture database backed by a SQLite file in the test's
// temp dir. Each call gets its own database.
func SQLite(tb testing.TB) *sql.DB {
	tb.Helper()
	db, _ := SQLiteFile(tb)
	return db
}

// SQLiteFile is SQLite, also returning the database file path so tests can
// open it again through another driver setup.
func SQLiteFile(tb testing.TB) (*sql.DB, string) {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "strata.db")
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })

	require.NoError(tb, Load(context.Background(), db))
	return db, path
}
