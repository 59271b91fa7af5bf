// Package policy holds the pure eligibility rules applied to a resolved
// window before a focus dispatch. All statefulness (the managed set
// snapshot, class lookups) lives with the callers; the predicates here are
// side-effect free.
package policy

import (
	"github.com/hoverfocus/hoverfocus/internal/managed"
	"github.com/hoverfocus/hoverfocus/internal/platform"
)

// Policy bundles the static class rules from configuration.
type Policy struct {
	ignore map[string]struct{}
	pause  map[string]struct{}
}

// New builds a policy from the configured class lists.
func New(ignoreClasses, pauseClasses []string) *Policy {
	p := &Policy{
		ignore: make(map[string]struct{}, len(ignoreClasses)),
		pause:  make(map[string]struct{}, len(pauseClasses)),
	}
	for _, c := range ignoreClasses {
		p.ignore[c] = struct{}{}
	}
	for _, c := range pauseClasses {
		p.pause[c] = struct{}{}
	}
	return p
}

// Eligible reports whether a resolved window may be focused, given its
// class and the current managed set snapshot. A nil snapshot means no
// external restriction is configured and every window passes the managed
// check; class-ignored windows never pass.
func (p *Policy) Eligible(win platform.Window, class string, snapshot managed.Set) bool {
	if win == platform.None {
		return false
	}
	if _, ignored := p.ignore[class]; ignored {
		return false
	}
	return snapshot.Contains(win)
}

// Paused reports whether focus changes are suspended while the given class
// holds focus (e.g. a task switcher surface).
func (p *Policy) Paused(activeClass string) bool {
	_, ok := p.pause[activeClass]
	return ok
}
