package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "history.db")
	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestLoadEmptyDatabase(t *testing.T) {
	s, _ := testStore(t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSaveAndLoadPreservesOrderAndFields(t *testing.T) {
	s, _ := testStore(t)

	modified := int64(1_700_000_009_000)
	completed := int64(1_700_000_008_000)
	wait := int64(30)
	records := []domain.HistoryRecord{
		{
			HistoryItem:       domain.HistoryItem{ID: "b", Status: domain.HistoryStatusPending, CreatedAt: 1_700_000_009_000, RequesterName: "Ada"},
			LocallyModifiedAt: &modified,
			NeedsSync:         true,
		},
		{
			HistoryItem: domain.HistoryItem{
				ID:               "a",
				Status:           domain.HistoryStatusCompleted,
				CreatedAt:        1_700_000_000_000,
				CompletedAt:      &completed,
				WaitTimeSeconds:  &wait,
				ServiceGroupName: "Security",
				HandlerName:      "Grace",
			},
		},
	}

	require.NoError(t, s.Save(context.Background(), records))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestSaveReplacesPreviousContents(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []domain.HistoryRecord{
		{HistoryItem: domain.HistoryItem{ID: "old", Status: domain.HistoryStatusCompleted, CreatedAt: 1}},
	}))
	require.NoError(t, s.Save(ctx, []domain.HistoryRecord{
		{HistoryItem: domain.HistoryItem{ID: "new", Status: domain.HistoryStatusCancelled, CreatedAt: 2}},
	}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)

	require.NoError(t, s.Save(ctx, nil))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopenKeepsData(t *testing.T) {
	s, path := testStore(t)

	require.NoError(t, s.Save(context.Background(), []domain.HistoryRecord{
		{HistoryItem: domain.HistoryItem{ID: "kept", Status: domain.HistoryStatusInProgress, CreatedAt: 5}},
	}))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].ID)
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
