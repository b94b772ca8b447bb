package reactive

import (
	"sync"
	"sync/atomic"
)

// Memo is a cached computation that tracks the cells it reads.
// A write to any source invalidates the cache; the next Get recomputes.
// Memos are lazy: nothing runs until the value is read, and any number
// of source changes between reads cost a single recomputation.
//
// Memos are themselves cells, so memos may read other memos and form
// derivation chains.
type Memo[T any] struct {
	base cellBase

	compute func() T

	value   T
	valueMu sync.RWMutex

	// valid reports whether the cached value is current.
	valid atomic.Bool

	sources   []*cellBase
	sourcesMu sync.Mutex

	equal func(T, T) bool

	// computing breaks recursion when a memo ends up reading itself.
	computing atomic.Bool
}

// NewMemo creates a memo over compute. The computation runs lazily on
// first Get.
func NewMemo[T any](compute func() T) *Memo[T] {
	return &Memo[T]{
		base:    cellBase{id: nextID()},
		compute: compute,
	}
}

// Get returns the memo's value, recomputing if a source changed, and
// subscribes the current listener.
func (m *Memo[T]) Get() T {
	m.base.track()

	if !m.valid.Load() {
		m.recompute()
	}

	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// Peek returns the value without subscribing. Still recomputes when
// the cache is stale.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the cache and propagates to subscribers.
// Implements Listener.
func (m *Memo[T]) MarkDirty() {
	if m.valid.CompareAndSwap(true, false) {
		m.base.notify()
	}
}

// ID returns the memo's unique identifier. Implements Listener.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// addSource records a cell read during the last computation.
// Implements sourceTracker.
func (m *Memo[T]) addSource(src *cellBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == src {
			return
		}
	}
	m.sources = append(m.sources, src)
}

// WithEquals configures a custom equality function and returns the
// memo for chaining.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

// Invalidate forces the next read to recompute, regardless of sources.
func (m *Memo[T]) Invalidate() {
	m.valid.Store(false)
}

func (m *Memo[T]) recompute() {
	if m.computing.Swap(true) {
		// Circular read; the in-flight computation keeps its value.
		return
	}
	defer m.computing.Store(false)

	// Drop stale source subscriptions before re-tracking.
	m.sourcesMu.Lock()
	for _, src := range m.sources {
		src.unsubscribe(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	old := setCurrentListener(m)
	next := m.compute()
	setCurrentListener(old)

	m.valueMu.Lock()
	m.value = next
	m.valueMu.Unlock()

	m.valid.Store(true)
}

var _ sourceTracker = (*Memo[int])(nil)
