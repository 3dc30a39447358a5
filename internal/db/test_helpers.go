package db

import (
	"testing"
	"time"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close test database: %v", err)
	}
}

// CreateTestExport creates a successful document entry
func CreateTestExport(session, subject, filename string, at time.Time) *Export {
	return &Export{
		SessionID: session,
		Kind:      KindDocument,
		Subject:   subject,
		Sender:    "sender@test.com",
		Filename:  filename,
		Folder:    "/exports",
		Success:   true,
		Size:      1024,
		CreatedAt: at,
	}
}

// InsertTestExports inserts entries and fails the test on error
func InsertTestExports(t *testing.T, db *DB, exports []*Export) []*Export {
	t.Helper()

	for i, e := range exports {
		if err := db.InsertExport(e); err != nil {
			t.Fatalf("Failed to insert test export %d: %v", i, err)
		}
	}

	return exports
}
