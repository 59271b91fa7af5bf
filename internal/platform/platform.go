package platform

import "errors"

// Window is an opaque, display-server-assigned identifier for a top-level
// window. The zero value means "no window".
type Window uint32

// None is the absent-window value.
const None Window = 0

// Point is an (x, y) coordinate in global screen space.
type Point struct {
	X int
	Y int
}

// WindowInfo describes a resolvable top-level window.
type WindowInfo struct {
	ID    Window `json:"id"`
	Class string `json:"class"`
	Title string `json:"title"`
}

var (
	// ErrQueryFailed marks a transient failure of a read-only display
	// server query (cursor position, window at point). Callers abandon
	// the current tick and try again on the next one.
	ErrQueryFailed = errors.New("platform query failed")

	// ErrDispatchFailed marks a refused or failed focus transfer,
	// including transfers aimed at a window that has since closed.
	ErrDispatchFailed = errors.New("focus dispatch failed")
)

// Backend is the display server abstraction the engine drives. The X11
// implementation is the only production backend; tests substitute fakes.
type Backend interface {
	// CursorPos returns the current pointer position in root coordinates.
	CursorPos() (Point, error)

	// WindowAt resolves a screen coordinate to the top-level window whose
	// visible region contains it, or None when the point is over the
	// desktop, a dock, or no window at all. Unmapped, hidden and
	// override-redirect windows are never returned.
	WindowAt(Point) (Window, error)

	// WindowClass returns the WM_CLASS class name of a window.
	WindowClass(Window) (string, error)

	// ActiveWindow returns the top-level window currently holding input
	// focus, or None.
	ActiveWindow() (Window, error)

	// Focus asks the window manager to transfer input focus to the given
	// window, raising it. Returns ErrDispatchFailed when refused or when
	// the handle is stale.
	Focus(Window) error

	// ListWindows returns all resolvable top-level application windows.
	ListWindows() ([]WindowInfo, error)

	// Close closes the connection to the display server.
	Close() error

	// Name returns the backend name (e.g. "x11").
	Name() string
}
