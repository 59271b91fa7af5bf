// Package managed loads and refreshes the externally maintained list of
// window handles a tiling window manager considers managed. The engine's
// eligibility filter consults the watcher's current snapshot each tick.
package managed

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hoverfocus/hoverfocus/internal/logger"
	"github.com/hoverfocus/hoverfocus/internal/platform"
)

// Set is a snapshot of managed window handles. A nil Set means "no
// restriction configured": every window is eligible.
type Set map[platform.Window]struct{}

// Contains reports membership. The nil (unconfigured) set contains
// everything except the absent window.
func (s Set) Contains(win platform.Window) bool {
	if win == platform.None {
		return false
	}
	if s == nil {
		return true
	}
	_, ok := s[win]
	return ok
}

// Watcher holds the current managed set and refreshes it from its backing
// file on a throttled schedule. Reloads are gated on a modification
// time/size check so the hot path does not pay for file reads every tick.
type Watcher struct {
	path       string
	checkEvery time.Duration
	failOpen   bool

	mu        sync.RWMutex
	snapshot  Set
	lastCheck time.Time
	lastMod   time.Time
	lastSize  int64
	hasLoaded bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithCheckInterval sets how often the backing file's modification state
// is re-examined.
func WithCheckInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.checkEvery = d
		}
	}
}

// WithFailOpen makes an unreadable or never-loaded list behave as
// unconfigured (all windows eligible) instead of empty (none eligible).
func WithFailOpen(failOpen bool) Option {
	return func(w *Watcher) { w.failOpen = failOpen }
}

// NewWatcher creates a watcher for the given path and performs the initial
// load. An empty path yields a permanently unconfigured watcher.
func NewWatcher(path string, opts ...Option) *Watcher {
	w := &Watcher{
		path:       path,
		checkEvery: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	if path == "" {
		return w
	}

	w.reload(time.Now())
	return w
}

// Configured reports whether a managed list path was supplied.
func (w *Watcher) Configured() bool {
	return w.path != ""
}

// Path returns the backing file path, empty when unconfigured.
func (w *Watcher) Path() string {
	return w.path
}

// Snapshot returns the current managed set, refreshing it first when the
// check interval has elapsed and the backing file changed. Unconfigured
// watchers always return nil. With fail-open enabled, a list that has
// never loaded successfully also returns nil.
func (w *Watcher) Snapshot() Set {
	if w.path == "" {
		return nil
	}

	now := time.Now()
	w.mu.RLock()
	due := now.Sub(w.lastCheck) >= w.checkEvery
	w.mu.RUnlock()
	if due {
		w.maybeReload(now)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.hasLoaded && w.failOpen {
		return nil
	}
	if !w.hasLoaded {
		return Set{}
	}
	return w.snapshot
}

// maybeReload re-reads the file only when its modification time or size
// moved since the last good load.
func (w *Watcher) maybeReload(now time.Time) {
	w.mu.Lock()
	if now.Sub(w.lastCheck) < w.checkEvery {
		w.mu.Unlock()
		return
	}
	w.lastCheck = now
	lastMod, lastSize, hasLoaded := w.lastMod, w.lastSize, w.hasLoaded
	w.mu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		if hasLoaded {
			// Keep the last good snapshot while the file is away.
			logger.WithComponent("managed").Debug().Err(err).
				Str("path", w.path).
				Msg("managed list unreadable, retaining last snapshot")
		}
		return
	}
	if hasLoaded && info.ModTime().Equal(lastMod) && info.Size() == lastSize {
		return
	}

	w.reload(now)
}

// reload reads and parses the backing file, swapping the snapshot
// wholesale on success. Parse problems on individual lines are skipped;
// a wholly unreadable file keeps the previous snapshot.
func (w *Watcher) reload(now time.Time) {
	log := logger.WithComponent("managed")

	f, err := os.Open(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).
			Msg("cannot read managed list")
		return
	}
	defer f.Close()

	info, statErr := f.Stat()

	next := make(Set)
	skipped := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		handle, err := strconv.ParseUint(line, 0, 32)
		if err != nil {
			skipped++
			continue
		}
		next[platform.Window(handle)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Str("path", w.path).
			Msg("failed reading managed list, retaining last snapshot")
		return
	}

	w.mu.Lock()
	w.snapshot = next
	w.hasLoaded = true
	w.lastCheck = now
	if statErr == nil {
		w.lastMod = info.ModTime()
		w.lastSize = info.Size()
	}
	w.mu.Unlock()

	log.Debug().Int("handles", len(next)).Int("skipped", skipped).
		Str("path", w.path).
		Msg("managed list loaded")
}
