package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"yoloview/internal/model"
	"yoloview/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ repository.RequestRepository = (*RequestRepository)(nil)

func newTestRepo(t *testing.T) *RequestRepository {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRequestRepository(db)
}

func testRequest(id, session string, at time.Time) *model.Request {
	return &model.Request{
		RequestID:         id,
		SessionID:         session,
		Filename:          "dog.png",
		AnnotatedFilename: "a.jpg",
		PDFFilename:       "r.pdf",
		CreatedAt:         at,
	}
}

func TestDatabase_OpenTempRemovesDirectory(t *testing.T) {
	db, err := OpenTemp()
	require.NoError(t, err)

	dir := db.Dir()
	_, err = os.Stat(filepath.Join(dir, ledgerFile))
	require.NoError(t, err, "ledger file should exist")

	require.NoError(t, db.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "temporary ledger directory should be gone")
}

func TestRequestRepository_InsertAndGet(t *testing.T) {
	repo := newTestRepo(t)

	id, err := repo.Insert(testRequest("r1", "s1", time.Time{}))
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := repo.GetByRequestID("r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "a.jpg", got.AnnotatedFilename)
	assert.Equal(t, "r.pdf", got.PDFFilename)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.Cleaned)

	missing, err := repo.GetByRequestID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRequestRepository_DuplicateRequestID(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Insert(testRequest("r1", "s1", time.Time{}))
	require.NoError(t, err)

	_, err = repo.Insert(testRequest("r1", "s2", time.Time{}))
	assert.Error(t, err)
}

func TestRequestRepository_ListBySession(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	for i, req := range []*model.Request{
		testRequest("r1", "s1", base),
		testRequest("r2", "s2", base.Add(time.Minute)),
		testRequest("r3", "s1", base.Add(2*time.Minute)),
	} {
		if _, err := repo.Insert(req); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	requests, err := repo.ListBySession("s1")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "r3", requests[0].RequestID)
	assert.Equal(t, "r1", requests[1].RequestID)

	none, err := repo.ListBySession("unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRequestRepository_PendingAndCleaned(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	for _, id := range []string{"r1", "r2", "r3"} {
		_, err := repo.Insert(testRequest(id, "s1", base))
		require.NoError(t, err)
		base = base.Add(time.Second)
	}

	require.NoError(t, repo.MarkCleaned("r2"))
	// Unknown ids are not an error.
	require.NoError(t, repo.MarkCleaned("missing"))

	pending, err := repo.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r1", pending[0].RequestID)
	assert.Equal(t, "r3", pending[1].RequestID)

	cleaned, err := repo.GetByRequestID("r2")
	require.NoError(t, err)
	assert.True(t, cleaned.Cleaned)
}
