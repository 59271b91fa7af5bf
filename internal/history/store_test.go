package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, win := range []uint32{10, 20, 30} {
		err := store.Record(&FocusChange{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Window:    win,
			Class:     "Navigator",
			Success:   true,
		})
		require.NoError(t, err)
	}

	changes, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, uint32(30), changes[0].Window)
	assert.Equal(t, uint32(20), changes[1].Window)
}

func TestRecordFailureOutcome(t *testing.T) {
	store := openTestStore(t)

	err := store.Record(&FocusChange{
		Window:  40,
		Success: false,
		Error:   "focus refused",
	})
	require.NoError(t, err)

	changes, err := store.Recent(1)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Success)
	assert.Equal(t, "focus refused", changes[0].Error)
	assert.False(t, changes[0].Timestamp.IsZero())
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Record(&FocusChange{Timestamp: old, Window: 10, Success: true}))
	require.NoError(t, store.Record(&FocusChange{Window: 20, Success: true}))

	pruned, err := store.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	changes, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, uint32(20), changes[0].Window)
}
