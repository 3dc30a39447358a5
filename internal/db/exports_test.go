package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

// TestInsertExport tests inserting a journal entry
func TestInsertExport(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	e := CreateTestExport("s1", "Quarterly numbers", "erado-email-Quarterly_numbers.pdf", base)
	require.NoError(t, db.InsertExport(e))
	assert.NotEmpty(t, e.ID, "Should assign an id")

	got, err := db.GetExport(e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, e.Subject, got.Subject)
	assert.Equal(t, e.Filename, got.Filename)
	assert.True(t, got.Success)
	assert.Equal(t, int64(1024), got.Size)
	assert.True(t, base.Equal(got.CreatedAt), "Timestamp should round-trip, got %v", got.CreatedAt)
}

func TestInsertExport_DefaultsTimestamp(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	e := &Export{SessionID: "s1", Kind: KindAttachment, Error: "download failed"}
	require.NoError(t, db.InsertExport(e))
	assert.False(t, e.CreatedAt.IsZero())

	got, err := db.GetExport(e.ID)
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, "download failed", got.Error)
}

func TestGetExport_NotFound(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	got, err := db.GetExport("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestListExports tests newest-first ordering and paging
func TestListExports(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestExports(t, db, []*Export{
		CreateTestExport("s1", "First", "a.pdf", base),
		CreateTestExport("s2", "Second", "b.pdf", base.Add(time.Minute)),
		CreateTestExport("s1", "Third", "c.pdf", base.Add(2*time.Minute)),
	})

	all, err := db.ListExports(10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Third", all[0].Subject)
	assert.Equal(t, "First", all[2].Subject)

	page, err := db.ListExports(1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Second", page[0].Subject)

	mine, err := db.ListSessionExports("s1", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestCountExports(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	failed := CreateTestExport("s1", "Broken", "", base)
	failed.Success = false
	InsertTestExports(t, db, []*Export{
		CreateTestExport("s1", "Ok", "ok.pdf", base),
		failed,
	})

	n, err := db.CountExports(true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = db.CountExports(false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestSearchExports tests full-text prefix search
func TestSearchExports(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestExports(t, db, []*Export{
		CreateTestExport("s1", "Meeting Tomorrow", "erado-email-Meeting_Tomorrow.pdf", base),
		CreateTestExport("s1", "Project Update", "erado-email-Project_Update.pdf", base),
		CreateTestExport("s1", "Meeting Notes", "erado-email-Meeting_Notes.pdf", base),
	})

	results, err := db.SearchExports("meet", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "Should find 2 entries starting with 'meet'")

	results, err = db.SearchExports("meeting notes", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Meeting Notes", results[0].Subject)

	results, err = db.SearchExports("", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3, "Empty query lists recent entries")
}

func TestSearchExports_OperatorsAreLiteral(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestExports(t, db, []*Export{CreateTestExport("s1", "Hello", "a.pdf", base)})

	for _, q := range []string{`"`, "AND", "OR NOT", "(", "hello*"} {
		_, err := db.SearchExports(q, 10)
		assert.NoError(t, err, "Query %q should not break FTS5", q)
	}
}

func TestSettings(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	v, err := db.GetSetting("last_folder")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetSetting("last_folder", "/tmp/a"))
	require.NoError(t, db.SetSetting("last_folder", "/tmp/b"))

	v, err = db.GetSetting("last_folder")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b", v)
}

func TestPruneExports(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	InsertTestExports(t, db, []*Export{
		CreateTestExport("s1", "Old report", "old.pdf", base.Add(-48*time.Hour)),
		CreateTestExport("s1", "Fresh report", "fresh.pdf", base),
	})

	n, err := db.PruneExports(base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := db.ListExports(10, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Fresh report", all[0].Subject)

	results, err := db.SearchExports("report", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1, "Pruned rows leave the search index")
}
