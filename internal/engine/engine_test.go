package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoverfocus/hoverfocus/internal/managed"
	"github.com/hoverfocus/hoverfocus/internal/platform"
	"github.com/hoverfocus/hoverfocus/internal/policy"
)

type fakeBackend struct {
	pos    platform.Point
	posErr error

	win    platform.Window
	winErr error

	classes map[platform.Window]string

	active platform.Window

	focusErr   error
	focusCalls []platform.Window
}

func (f *fakeBackend) CursorPos() (platform.Point, error) {
	return f.pos, f.posErr
}

func (f *fakeBackend) WindowAt(platform.Point) (platform.Window, error) {
	return f.win, f.winErr
}

func (f *fakeBackend) WindowClass(w platform.Window) (string, error) {
	return f.classes[w], nil
}

func (f *fakeBackend) ActiveWindow() (platform.Window, error) {
	return f.active, nil
}

func (f *fakeBackend) Focus(w platform.Window) error {
	f.focusCalls = append(f.focusCalls, w)
	if f.focusErr != nil {
		return f.focusErr
	}
	f.active = w
	return nil
}

func newTestEngine(t *testing.T, backend *fakeBackend, watcher *managed.Watcher, pol *policy.Policy) *Engine {
	t.Helper()
	if watcher == nil {
		watcher = managed.NewWatcher("")
	}
	if pol == nil {
		pol = policy.New(nil, nil)
	}
	return New(backend, watcher, pol, Config{Interval: time.Millisecond})
}

func writeManagedList(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "windows.list")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestRepeatedHoverDispatchesOnce(t *testing.T) {
	backend := &fakeBackend{win: 10}
	eng := newTestEngine(t, backend, nil, nil)

	for i := 0; i < 5; i++ {
		eng.Tick()
	}

	assert.Equal(t, []platform.Window{10}, backend.focusCalls)
	assert.Equal(t, platform.Window(10), eng.LastFocused())
}

func TestNoRestrictionByDefault(t *testing.T) {
	backend := &fakeBackend{}
	eng := newTestEngine(t, backend, nil, nil)

	for _, win := range []platform.Window{10, 20, 30} {
		backend.win = win
		eng.Tick()
	}

	assert.Equal(t, []platform.Window{10, 20, 30}, backend.focusCalls)
}

func TestManagedListRejectsUnlistedWindow(t *testing.T) {
	path := writeManagedList(t, "10\n")
	watcher := managed.NewWatcher(path)

	backend := &fakeBackend{win: 20}
	eng := newTestEngine(t, backend, watcher, nil)

	eng.Tick()

	assert.Empty(t, backend.focusCalls)
	assert.Equal(t, platform.None, eng.LastFocused())
}

func TestDistinctManagedWindowsAreNotSuppressed(t *testing.T) {
	path := writeManagedList(t, "10\n20\n")
	watcher := managed.NewWatcher(path)

	backend := &fakeBackend{}
	eng := newTestEngine(t, backend, watcher, nil)

	for _, win := range []platform.Window{10, 20, 10} {
		backend.win = win
		eng.Tick()
	}

	assert.Equal(t, []platform.Window{10, 20, 10}, backend.focusCalls)
	assert.Equal(t, platform.Window(10), eng.LastFocused())
}

func TestDispatchFailureLeavesStateAndRetries(t *testing.T) {
	backend := &fakeBackend{win: 30, focusErr: errors.New("focus refused")}
	eng := newTestEngine(t, backend, nil, nil)

	eng.Tick()
	assert.Equal(t, platform.None, eng.LastFocused())

	// Next tick retries the same candidate because the recorded focus
	// was never advanced.
	eng.Tick()
	assert.Equal(t, []platform.Window{30, 30}, backend.focusCalls)

	backend.focusErr = nil
	eng.Tick()
	assert.Equal(t, platform.Window(30), eng.LastFocused())
}

func TestHoverAwayPreservesFocus(t *testing.T) {
	backend := &fakeBackend{win: 10}
	eng := newTestEngine(t, backend, nil, nil)

	eng.Tick()
	require.Equal(t, platform.Window(10), eng.LastFocused())

	backend.win = platform.None
	for i := 0; i < 3; i++ {
		eng.Tick()
	}

	assert.Equal(t, []platform.Window{10}, backend.focusCalls)
	assert.Equal(t, platform.Window(10), eng.LastFocused())
}

func TestIneligibleWindowPreservesFocus(t *testing.T) {
	path := writeManagedList(t, "10\n")
	watcher := managed.NewWatcher(path)

	backend := &fakeBackend{win: 10}
	eng := newTestEngine(t, backend, watcher, nil)

	eng.Tick()
	require.Equal(t, platform.Window(10), eng.LastFocused())

	backend.win = 99
	eng.Tick()

	assert.Equal(t, []platform.Window{10}, backend.focusCalls)
	assert.Equal(t, platform.Window(10), eng.LastFocused())
}

func TestQueryFailureSkipsTick(t *testing.T) {
	backend := &fakeBackend{win: 10, posErr: platform.ErrQueryFailed}
	eng := newTestEngine(t, backend, nil, nil)

	eng.Tick()
	assert.Empty(t, backend.focusCalls)

	backend.posErr = nil
	backend.winErr = platform.ErrQueryFailed
	eng.Tick()
	assert.Empty(t, backend.focusCalls)

	// A bad tick never stops subsequent ticks.
	backend.winErr = nil
	eng.Tick()
	assert.Equal(t, []platform.Window{10}, backend.focusCalls)
}

func TestIgnoredClassIsNeverFocused(t *testing.T) {
	backend := &fakeBackend{
		win:     10,
		classes: map[platform.Window]string{10: "Conky"},
	}
	eng := newTestEngine(t, backend, nil, policy.New([]string{"Conky"}, nil))

	eng.Tick()

	assert.Empty(t, backend.focusCalls)
}

func TestPauseClassSuspendsDispatch(t *testing.T) {
	backend := &fakeBackend{
		win:    10,
		active: 99,
		classes: map[platform.Window]string{
			10: "Navigator",
			99: "Switcher",
		},
	}
	eng := newTestEngine(t, backend, nil, policy.New(nil, []string{"Switcher"}))

	eng.Tick()
	assert.Empty(t, backend.focusCalls)

	backend.active = platform.None
	eng.Tick()
	assert.Equal(t, []platform.Window{10}, backend.focusCalls)
}

func TestFailClosedUntilValidListAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.list")
	watcher := managed.NewWatcher(path, managed.WithCheckInterval(time.Millisecond))

	backend := &fakeBackend{win: 10}
	eng := newTestEngine(t, backend, watcher, nil)

	eng.Tick()
	assert.Empty(t, backend.focusCalls, "missing configured list must reject everything")

	require.NoError(t, os.WriteFile(path, []byte("10\n"), 0644))
	time.Sleep(5 * time.Millisecond)

	eng.Tick()
	assert.Equal(t, []platform.Window{10}, backend.focusCalls)
}

func TestEventsPublished(t *testing.T) {
	backend := &fakeBackend{win: 10}
	eng := newTestEngine(t, backend, nil, nil)

	events := eng.Subscribe()
	defer eng.Unsubscribe(events)

	eng.Tick()

	select {
	case ev := <-events:
		assert.True(t, ev.Success)
		assert.Equal(t, platform.Window(10), ev.Window)
		assert.Empty(t, ev.Error)
	default:
		t.Fatal("expected a focus event")
	}

	backend.win = 20
	backend.focusErr = errors.New("focus refused")
	eng.Tick()

	select {
	case ev := <-events:
		assert.False(t, ev.Success)
		assert.Equal(t, platform.Window(20), ev.Window)
		assert.Contains(t, ev.Error, "focus refused")
	default:
		t.Fatal("expected a failure event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	backend := &fakeBackend{}
	eng := newTestEngine(t, backend, nil, nil)

	events := eng.Subscribe()
	eng.Unsubscribe(events)

	_, open := <-events
	assert.False(t, open)
}
