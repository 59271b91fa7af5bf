package managed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoverfocus/hoverfocus/internal/platform"
)

func writeList(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestUnconfiguredWatcher(t *testing.T) {
	w := NewWatcher("")

	assert.False(t, w.Configured())
	assert.Nil(t, w.Snapshot())
}

func TestNilSetContainsEverythingButNone(t *testing.T) {
	var s Set

	assert.True(t, s.Contains(platform.Window(42)))
	assert.False(t, s.Contains(platform.None))
}

func TestInitialLoadParsesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	writeList(t, path, "123\n0x10\n\nnot-a-handle\n  456  \n")

	w := NewWatcher(path)
	s := w.Snapshot()

	require.Len(t, s, 3)
	assert.True(t, s.Contains(123))
	assert.True(t, s.Contains(0x10))
	assert.True(t, s.Contains(456))
	assert.False(t, s.Contains(789))
}

func TestMissingConfiguredListFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")

	w := NewWatcher(path)
	s := w.Snapshot()

	assert.True(t, w.Configured())
	require.NotNil(t, s)
	assert.Empty(t, s)
	assert.False(t, s.Contains(123))
}

func TestMissingConfiguredListFailsOpenWhenAsked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")

	w := NewWatcher(path, WithFailOpen(true))

	assert.Nil(t, w.Snapshot())
	assert.True(t, w.Snapshot().Contains(123))
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	writeList(t, path, "1\n")

	w := NewWatcher(path, WithCheckInterval(time.Millisecond))
	require.True(t, w.Snapshot().Contains(1))

	writeList(t, path, "2\n")
	// Force a distinct modification time; some filesystems have coarse
	// mtime resolution.
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(5 * time.Millisecond)

	s := w.Snapshot()
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(1))
}

func TestReloadThrottledByCheckInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	writeList(t, path, "1\n")

	w := NewWatcher(path, WithCheckInterval(time.Hour))

	writeList(t, path, "2\n")
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	// Within the check interval the old snapshot is served unchanged.
	s := w.Snapshot()
	assert.True(t, s.Contains(1))
	assert.False(t, s.Contains(2))
}

func TestVanishedFileRetainsLastGoodSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	writeList(t, path, "1\n")

	w := NewWatcher(path, WithCheckInterval(time.Millisecond))
	require.True(t, w.Snapshot().Contains(1))

	require.NoError(t, os.Remove(path))
	time.Sleep(5 * time.Millisecond)

	assert.True(t, w.Snapshot().Contains(1))
}

func TestWholesaleSwapNeverMergesSets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	writeList(t, path, "1\n2\n3\n")

	w := NewWatcher(path, WithCheckInterval(time.Millisecond))
	require.Len(t, w.Snapshot(), 3)

	writeList(t, path, "4\n")
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(5 * time.Millisecond)

	s := w.Snapshot()
	assert.Len(t, s, 1)
	assert.True(t, s.Contains(4))
}
