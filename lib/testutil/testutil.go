package testutil

import (
	"database/sql"
	"hwnotifier/lib/telemetry"
	"testing"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens a private in-memory database that is closed when the
// test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	telemetry.SetupForTesting(t)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a different database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
