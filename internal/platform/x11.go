package platform

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/hoverfocus/hoverfocus/internal/logger"
)

// EWMH source indication for a pager/tool, used in _NET_ACTIVE_WINDOW
// client messages so the window manager knows the request is synthetic.
const sourceIndicationTool = 2

// clientSearchDepth bounds the subtree walk that locates the client window
// inside a window manager frame. Reparenting WMs nest the client one or two
// levels deep.
const clientSearchDepth = 8

// X11Backend implements Backend against an X11 display server.
type X11Backend struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo

	atomActiveWindow xproto.Atom
	atomWMState      xproto.Atom
	atomNetWMState   xproto.Atom
	atomHidden       xproto.Atom
	atomWindowType   xproto.Atom
	atomTypeDesktop  xproto.Atom
	atomTypeDock     xproto.Atom
	atomClientList   xproto.Atom
	atomNetWMName    xproto.Atom
}

// NewX11Backend connects to the X server and interns the atoms the backend
// needs up front.
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	b := &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}

	atoms := []struct {
		name string
		dst  *xproto.Atom
	}{
		{"_NET_ACTIVE_WINDOW", &b.atomActiveWindow},
		{"WM_STATE", &b.atomWMState},
		{"_NET_WM_STATE", &b.atomNetWMState},
		{"_NET_WM_STATE_HIDDEN", &b.atomHidden},
		{"_NET_WM_WINDOW_TYPE", &b.atomWindowType},
		{"_NET_WM_WINDOW_TYPE_DESKTOP", &b.atomTypeDesktop},
		{"_NET_WM_WINDOW_TYPE_DOCK", &b.atomTypeDock},
		{"_NET_CLIENT_LIST", &b.atomClientList},
		{"_NET_WM_NAME", &b.atomNetWMName},
	}
	for _, a := range atoms {
		reply, err := xproto.InternAtom(conn, false, uint16(len(a.name)), a.name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %w", a.name, err)
		}
		*a.dst = reply.Atom
	}

	return b, nil
}

// Close closes the X11 connection.
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// Name returns the backend name.
func (b *X11Backend) Name() string {
	return "x11"
}

// CursorPos returns the pointer position in root coordinates.
func (b *X11Backend) CursorPos() (Point, error) {
	reply, err := xproto.QueryPointer(b.conn, b.root).Reply()
	if err != nil {
		return Point{}, fmt.Errorf("%w: query pointer: %v", ErrQueryFailed, err)
	}
	return Point{X: int(reply.RootX), Y: int(reply.RootY)}, nil
}

// WindowAt resolves a root coordinate to the top-level client window under
// it. The direct child of the root at that point is usually a WM frame; the
// client window is found by searching the frame subtree for WM_STATE.
func (b *X11Backend) WindowAt(pt Point) (Window, error) {
	tr, err := xproto.TranslateCoordinates(b.conn, b.root, b.root, int16(pt.X), int16(pt.Y)).Reply()
	if err != nil {
		return None, fmt.Errorf("%w: translate coordinates: %v", ErrQueryFailed, err)
	}
	if tr.Child == 0 {
		return None, nil
	}

	client := b.clientWindow(tr.Child)
	if client == 0 {
		return None, nil
	}
	if !b.isFocusable(client) {
		return None, nil
	}
	return Window(client), nil
}

// ActiveWindow returns the top-level window currently holding input focus.
func (b *X11Backend) ActiveWindow() (Window, error) {
	reply, err := xproto.GetInputFocus(b.conn).Reply()
	if err != nil {
		return None, fmt.Errorf("%w: get input focus: %v", ErrQueryFailed, err)
	}
	if reply.Focus == 0 || reply.Focus == b.root {
		return None, nil
	}
	return Window(b.topLevel(reply.Focus)), nil
}

// Focus transfers input focus to win by asking the window manager via a
// _NET_ACTIVE_WINDOW client message, falling back to a direct
// SetInputFocus plus restack when no EWMH window manager answers.
func (b *X11Backend) Focus(win Window) error {
	target := xproto.Window(win)

	// Validate the handle first so a window that closed between
	// resolution and dispatch surfaces as an ordinary dispatch failure.
	if _, err := xproto.GetWindowAttributes(b.conn, target).Reply(); err != nil {
		return fmt.Errorf("%w: stale window 0x%x: %v", ErrDispatchFailed, win, err)
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: target,
		Type:   b.atomActiveWindow,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			sourceIndicationTool,
			uint32(xproto.TimeCurrentTime),
			0, 0, 0,
		}),
	}
	err := xproto.SendEventChecked(
		b.conn,
		false,
		b.root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
	if err == nil {
		return nil
	}
	logger.WithComponent("x11").Debug().Err(err).
		Uint32("window", uint32(win)).
		Msg("_NET_ACTIVE_WINDOW message failed, falling back to SetInputFocus")

	if err := xproto.SetInputFocusChecked(b.conn, xproto.InputFocusPointerRoot, target, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("%w: set input focus on 0x%x: %v", ErrDispatchFailed, win, err)
	}
	// Raise so the newly focused window is not left behind its siblings.
	// Stacking is best effort; focus already transferred.
	_ = xproto.ConfigureWindowChecked(b.conn, target, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
	return nil
}

// WindowClass returns the WM_CLASS class name of a window.
// WM_CLASS holds two null-terminated strings: instance, then class.
func (b *X11Backend) WindowClass(win Window) (string, error) {
	raw, err := b.getProperty(xproto.Window(win), xproto.AtomWmClass)
	if err != nil {
		return "", fmt.Errorf("%w: WM_CLASS of 0x%x: %v", ErrQueryFailed, win, err)
	}
	parts := strings.Split(raw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1], nil
	}
	if len(parts) >= 1 {
		return parts[0], nil
	}
	return "", nil
}

// ListWindows returns all resolvable top-level application windows, using
// EWMH _NET_CLIENT_LIST with a QueryTree fallback.
func (b *X11Backend) ListWindows() ([]WindowInfo, error) {
	log := logger.WithComponent("x11")

	windows, err := b.listWindowsEWMH()
	if err == nil && len(windows) > 0 {
		return windows, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("_NET_CLIENT_LIST unavailable, falling back to QueryTree")
	}

	return b.listWindowsQueryTree()
}

func (b *X11Backend) listWindowsEWMH() ([]WindowInfo, error) {
	reply, err := xproto.GetProperty(
		b.conn, false, b.root, b.atomClientList,
		xproto.GetPropertyTypeAny, 0, (1<<32)-1,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST: %w", err)
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("_NET_CLIENT_LIST is empty")
	}

	windows := make([]WindowInfo, 0, reply.ValueLen)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		winID := xproto.Window(uint32(reply.Value[i]) |
			uint32(reply.Value[i+1])<<8 |
			uint32(reply.Value[i+2])<<16 |
			uint32(reply.Value[i+3])<<24)

		info := b.windowInfo(winID)
		if info.Class == "" && info.Title == "" {
			continue
		}
		windows = append(windows, info)
	}
	return windows, nil
}

func (b *X11Backend) listWindowsQueryTree() ([]WindowInfo, error) {
	tree, err := xproto.QueryTree(b.conn, b.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: query tree: %v", ErrQueryFailed, err)
	}

	windows := make([]WindowInfo, 0)
	for _, child := range tree.Children {
		client := b.clientWindow(child)
		if client == 0 {
			continue
		}
		info := b.windowInfo(client)
		if info.Class == "" && info.Title == "" {
			continue
		}
		windows = append(windows, info)
	}
	return windows, nil
}

func (b *X11Backend) windowInfo(win xproto.Window) WindowInfo {
	info := WindowInfo{ID: Window(win)}

	if title, err := b.getProperty(win, b.atomNetWMName); err == nil {
		info.Title = title
	}
	if info.Title == "" {
		if title, err := b.getProperty(win, xproto.AtomWmName); err == nil {
			info.Title = title
		}
	}
	if class, err := b.WindowClass(Window(win)); err == nil {
		info.Class = class
	}
	return info
}

// clientWindow finds the client window (the one carrying WM_STATE) within
// a frame subtree, breadth first. Returns 0 when the subtree holds no
// client, e.g. an unmanaged popup.
func (b *X11Backend) clientWindow(win xproto.Window) xproto.Window {
	if b.hasWMState(win) {
		return win
	}

	queue := []xproto.Window{win}
	for depth := 0; depth < clientSearchDepth && len(queue) > 0; depth++ {
		var next []xproto.Window
		for _, w := range queue {
			tree, err := xproto.QueryTree(b.conn, w).Reply()
			if err != nil {
				continue
			}
			for _, child := range tree.Children {
				if b.hasWMState(child) {
					return child
				}
				next = append(next, child)
			}
		}
		queue = next
	}
	return 0
}

// topLevel walks up from an arbitrary (possibly child) window to the
// top-level client window owning it.
func (b *X11Backend) topLevel(win xproto.Window) xproto.Window {
	current := win
	for depth := 0; depth < clientSearchDepth; depth++ {
		if b.hasWMState(current) {
			return current
		}
		tree, err := xproto.QueryTree(b.conn, current).Reply()
		if err != nil || tree.Parent == 0 || tree.Parent == b.root {
			return current
		}
		current = tree.Parent
	}
	return current
}

// isFocusable reports whether a client window may receive focus: mapped,
// not override-redirect, not EWMH-hidden, and not a desktop/dock surface.
func (b *X11Backend) isFocusable(win xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(b.conn, win).Reply()
	if err != nil {
		return false
	}
	if attrs.MapState != xproto.MapStateViewable || attrs.OverrideRedirect {
		return false
	}

	for _, atom := range b.atomValues(win, b.atomNetWMState) {
		if atom == b.atomHidden {
			return false
		}
	}
	for _, atom := range b.atomValues(win, b.atomWindowType) {
		if atom == b.atomTypeDesktop || atom == b.atomTypeDock {
			return false
		}
	}
	return true
}

// hasWMState reports whether a window carries the ICCCM WM_STATE property,
// i.e. whether the window manager manages it as a client.
func (b *X11Backend) hasWMState(win xproto.Window) bool {
	reply, err := xproto.GetProperty(
		b.conn, false, win, b.atomWMState,
		xproto.GetPropertyTypeAny, 0, 1,
	).Reply()
	return err == nil && reply.Format != 0
}

// atomValues reads a window property as a list of atoms.
func (b *X11Backend) atomValues(win xproto.Window, prop xproto.Atom) []xproto.Atom {
	reply, err := xproto.GetProperty(
		b.conn, false, win, prop,
		xproto.AtomAtom, 0, 32,
	).Reply()
	if err != nil || reply.Format != 32 {
		return nil
	}

	atoms := make([]xproto.Atom, 0, reply.ValueLen)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		atoms = append(atoms, xproto.Atom(uint32(reply.Value[i])|
			uint32(reply.Value[i+1])<<8|
			uint32(reply.Value[i+2])<<16|
			uint32(reply.Value[i+3])<<24))
	}
	return atoms
}

// getProperty reads a window property value as a string.
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn, false, win, atom,
		xproto.GetPropertyTypeAny, 0, (1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}
	return string(reply.Value), nil
}
