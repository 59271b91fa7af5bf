// Package engine drives the focus-follows-mouse pipeline: sample the
// pointer, resolve the window under it, filter it against policy, debounce,
// and dispatch a focus change.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hoverfocus/hoverfocus/internal/logger"
	"github.com/hoverfocus/hoverfocus/internal/managed"
	"github.com/hoverfocus/hoverfocus/internal/platform"
	"github.com/hoverfocus/hoverfocus/internal/policy"
)

// Backend is the subset of the platform surface the engine drives.
type Backend interface {
	CursorPos() (platform.Point, error)
	WindowAt(platform.Point) (platform.Window, error)
	WindowClass(platform.Window) (string, error)
	ActiveWindow() (platform.Window, error)
	Focus(platform.Window) error
}

// Event records one dispatched (or refused) focus change.
type Event struct {
	Window  platform.Window `json:"window"`
	Class   string          `json:"class,omitempty"`
	Time    time.Time       `json:"time"`
	Error   string          `json:"error,omitempty"`
	Success bool            `json:"success"`
}

// Config tunes the engine loop.
type Config struct {
	// Interval is the tick cadence. Sub-interval cursor motion coalesces
	// into the next sample, which is the primary debounce against
	// high-frequency movement.
	Interval time.Duration

	// CacheFlushAge bounds how long WM_CLASS lookups are cached before
	// the cache is dropped wholesale.
	CacheFlushAge time.Duration
}

const (
	defaultInterval      = 50 * time.Millisecond
	defaultCacheFlushAge = 10 * time.Minute
)

// Engine owns the loop state: the last successfully focused window and the
// class lookup cache. It is the only writer of both.
type Engine struct {
	backend Backend
	watcher *managed.Watcher
	policy  *policy.Policy

	interval time.Duration
	cacheAge time.Duration

	classCache map[platform.Window]string
	cacheBorn  time.Time

	mu          sync.RWMutex
	lastFocused platform.Window
	subscribers map[chan Event]struct{}
}

// New creates an engine over the given backend, managed list watcher and
// policy.
func New(backend Backend, watcher *managed.Watcher, pol *policy.Policy, cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.CacheFlushAge <= 0 {
		cfg.CacheFlushAge = defaultCacheFlushAge
	}
	return &Engine{
		backend:     backend,
		watcher:     watcher,
		policy:      pol,
		interval:    cfg.Interval,
		cacheAge:    cfg.CacheFlushAge,
		classCache:  make(map[platform.Window]string),
		cacheBorn:   time.Now(),
		subscribers: make(map[chan Event]struct{}),
	}
}

// LastFocused returns the window last successfully focused by this engine,
// or None. This deliberately tracks the engine's own dispatches, never
// focus changes made by the user or other tools.
func (e *Engine) LastFocused() platform.Window {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastFocused
}

// Subscribe returns a channel receiving focus events. Slow receivers drop
// events rather than stalling the loop.
func (e *Engine) Subscribe() chan Event {
	ch := make(chan Event, 16)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (e *Engine) Unsubscribe(ch chan Event) {
	e.mu.Lock()
	if _, ok := e.subscribers[ch]; ok {
		delete(e.subscribers, ch)
		close(ch)
	}
	e.mu.Unlock()
}

// Run ticks until the context is cancelled. A failed tick never stops
// subsequent ticks.
func (e *Engine) Run(ctx context.Context) error {
	log := logger.WithComponent("engine")
	log.Info().
		Dur("interval", e.interval).
		Bool("managed_list", e.watcher.Configured()).
		Msg("engine running")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("engine stopping")
			return nil
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one sample-resolve-filter-debounce-dispatch cycle. Any query
// failure abandons the tick; state is touched only after a successful
// dispatch.
func (e *Engine) Tick() {
	log := logger.WithComponent("engine")

	if time.Since(e.cacheBorn) > e.cacheAge {
		e.classCache = make(map[platform.Window]string)
		e.cacheBorn = time.Now()
		log.Debug().Msg("class cache flushed")
	}

	pt, err := e.backend.CursorPos()
	if err != nil {
		log.Debug().Err(err).Msg("cursor query failed, skipping tick")
		return
	}

	win, err := e.backend.WindowAt(pt)
	if err != nil {
		log.Debug().Err(err).Msg("window resolution failed, skipping tick")
		return
	}
	if win == platform.None {
		return
	}
	if win == e.LastFocused() {
		return
	}

	class := e.className(win)
	if !e.policy.Eligible(win, class, e.watcher.Snapshot()) {
		return
	}

	if active, err := e.backend.ActiveWindow(); err == nil && active != platform.None {
		if e.policy.Paused(e.className(active)) {
			log.Trace().Uint32("active", uint32(active)).
				Msg("focus changes paused by active window class")
			return
		}
	}

	if err := e.backend.Focus(win); err != nil {
		log.Warn().Err(err).
			Uint32("window", uint32(win)).
			Str("class", class).
			Msg("focus dispatch failed")
		e.publish(Event{Window: win, Class: class, Time: time.Now(), Error: err.Error()})
		return
	}

	e.mu.Lock()
	e.lastFocused = win
	e.mu.Unlock()

	log.Info().
		Uint32("window", uint32(win)).
		Str("class", class).
		Int("x", pt.X).
		Int("y", pt.Y).
		Msg("focused window under cursor")
	e.publish(Event{Window: win, Class: class, Time: time.Now(), Success: true})
}

// className returns the cached WM_CLASS of a window, querying on a miss.
// Lookup failures are not cached so a transient failure can recover.
func (e *Engine) className(win platform.Window) string {
	if class, ok := e.classCache[win]; ok {
		return class
	}
	class, err := e.backend.WindowClass(win)
	if err != nil {
		return ""
	}
	e.classCache[win] = class
	return class
}

func (e *Engine) publish(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
