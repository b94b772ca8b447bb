package reactive

import (
	"sync"
	"sync/atomic"
)

// Scope is an ownership node for reactive resources. Cleanups and
// child scopes registered on it are released when the scope is
// disposed, children first, cleanups in reverse registration order.
//
// The store runtime installs a scope around externally-owned code
// (for example a UI component body) so that subscriptions registered
// inside are detached automatically when that code's lifetime ends.
type Scope struct {
	id     uint64
	parent *Scope

	children   []*Scope
	childrenMu sync.Mutex

	cleanups   []Cleanup
	cleanupsMu sync.Mutex

	disposed atomic.Bool
}

// NewScope creates a scope under parent. A nil parent creates a root.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		parent.addChild(s)
	}
	return s
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsDisposed reports whether Dispose has run.
func (s *Scope) IsDisposed() bool {
	return s.disposed.Load()
}

// OnCleanup registers fn to run when the scope is disposed.
// Registering on a disposed scope runs fn immediately.
func (s *Scope) OnCleanup(fn Cleanup) {
	if fn == nil {
		return
	}
	if s.disposed.Load() {
		fn()
		return
	}
	s.cleanupsMu.Lock()
	s.cleanups = append(s.cleanups, fn)
	s.cleanupsMu.Unlock()
}

// Dispose releases the scope: child scopes first (newest first), then
// cleanups in reverse registration order. Idempotent.
func (s *Scope) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	s.childrenMu.Lock()
	children := s.children
	s.children = nil
	s.childrenMu.Unlock()
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}
}

func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// CurrentScope returns the scope installed on this goroutine, or nil.
func CurrentScope() *Scope {
	return getTracking().scope
}

// WithScope runs fn with s installed as the current scope.
func WithScope(s *Scope, fn func()) {
	ctx := getTracking()
	old := ctx.scope
	ctx.scope = s
	defer func() { ctx.scope = old }()
	fn()
}
