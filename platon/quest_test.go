package platon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) (*gorm.DB, *writeDB) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database = filepath.Join(t.TempDir(), "test.sqlite3")
	db, err := newDatabase(
		context.Background(),
		cfg,
		newLogHandler(cfg.DatabaseLogLevel),
	)
	require.NoError(t, err)
	return db, newWriteDB(db, nil)
}

func newTestQuestStore(t *testing.T) *QuestStore {
	t.Helper()
	db, w := testDB(t)
	return NewQuestStore(db, w, nil)
}

func TestQuestStoreAddToggleDelete(t *testing.T) {
	t.Parallel()
	store := newTestQuestStore(t)

	items, err := store.Add("g1", "u1", []string{"run 5k", "", "read a book"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "run 5k", items[0].Text)

	items, err = store.Toggle("g1", "u1", items[0].ID)
	require.NoError(t, err)
	assert.True(t, items[0].Completed)

	items, err = store.Delete("g1", "u1", items[1].ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = store.Toggle("g1", "u1", "no-such-id")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestQuestStoreCapacityRejectsWholeBatch(t *testing.T) {
	t.Parallel()
	store := newTestQuestStore(t)

	_, err := store.Add("g1", "u1", []string{"q1", "q2", "q3"})
	require.NoError(t, err)

	_, err = store.Add("g1", "u1", []string{"q4", "q5"})
	var capErr CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, WeeklyQuestCapacity, capErr.Limit)

	items, err := store.Items("g1", "u1")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestQuestStoreEpochWindow(t *testing.T) {
	t.Parallel()
	store := newTestQuestStore(t)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, seoul)
	store.now = func() time.Time { return now }

	epoch, err := store.Epoch("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", epoch.StartDate)
	assert.Equal(t, "2026-09-07", epoch.EndDate())
}

func TestQuestStoreLazyRollover(t *testing.T) {
	t.Parallel()
	store := newTestQuestStore(t)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, seoul)
	store.now = func() time.Time { return now }

	_, err := store.Add("g1", "u1", []string{"old quest"})
	require.NoError(t, err)

	// the last day of the window still shows the items
	now = now.AddDate(0, 0, questEpochDays)
	items, err := store.Items("g1", "u1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// one day past the window, the next read starts a fresh epoch
	now = now.AddDate(0, 0, 1)
	items, err = store.Items("g1", "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	epoch, err := store.Epoch("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-08", epoch.StartDate)
}

func TestQuestStorePersistsAcrossRestarts(t *testing.T) {
	t.Parallel()
	db, w := testDB(t)
	store := NewQuestStore(db, w, nil)

	added, err := store.Add("g1", "u1", []string{"persistent quest"})
	require.NoError(t, err)

	// a second store over the same database sees the same epoch
	reopened := NewQuestStore(db, w, nil)
	items, err := reopened.Items("g1", "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, added[0].ID, items[0].ID)
	assert.Equal(t, "persistent quest", items[0].Text)
}
