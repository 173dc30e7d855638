package testutil

import (
	"testing"

	"bkup-go/internal/database"
)

// NewTestDatabase creates a migrated in-memory SQLite database that is
// closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
