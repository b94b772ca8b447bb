package reactive

import (
	"reflect"
	"sync"
)

// cellBase provides type-erased subscriber management, shared between
// Signal[T] and Memo[T].
type cellBase struct {
	id uint64

	subs  []Listener
	subMu sync.RWMutex
}

// subscribe adds a listener, deduplicating by listener ID.
func (b *cellBase) subscribe(l Listener) {
	if l == nil {
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	lid := l.ID()
	for _, existing := range b.subs {
		if existing.ID() == lid {
			return
		}
	}
	b.subs = append(b.subs, l)
}

// unsubscribe removes a listener by ID.
func (b *cellBase) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	lid := l.ID()
	for i, existing := range b.subs {
		if existing.ID() == lid {
			b.subs[i] = b.subs[len(b.subs)-1]
			b.subs = b.subs[:len(b.subs)-1]
			return
		}
	}
}

// notify marks every subscriber dirty, or queues them if a batch is
// open on the current goroutine. The subscriber slice is copied before
// notification so callbacks may subscribe/unsubscribe freely.
func (b *cellBase) notify() {
	b.subMu.RLock()
	subs := make([]Listener, len(b.subs))
	copy(subs, b.subs)
	b.subMu.RUnlock()

	if batchDepth() > 0 {
		for _, sub := range subs {
			queuePending(sub)
		}
		return
	}
	for _, sub := range subs {
		sub.MarkDirty()
	}
}

// sourceTracker is implemented by listeners that track which cells they
// read, so they can unsubscribe from stale sources before re-running.
type sourceTracker interface {
	Listener
	addSource(src *cellBase)
}

// track subscribes the current goroutine's listener, if any, and
// records this cell as one of its sources.
func (b *cellBase) track() {
	l := currentListener()
	if l == nil {
		return
	}
	b.subscribe(l)
	if st, ok := l.(sourceTracker); ok {
		st.addSource(b)
	}
}

// Signal is a reactive cell: a mutable container whose readers are
// tracked and whose writers notify dependents.
type Signal[T any] struct {
	base cellBase

	value T
	mu    sync.RWMutex

	// equal decides whether a write actually changed the value.
	// nil selects default equality.
	equal func(T, T) bool
}

// NewSignal creates a signal holding initial.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		base:  cellBase{id: nextID()},
		value: initial,
	}
}

// Get returns the current value and subscribes the current listener,
// if one is installed on this goroutine.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	s.base.track()
	return value
}

// Peek returns the current value without subscribing anything.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set writes a new value and notifies subscribers when it differs from
// the current one under the signal's equality function.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.base.notify()
	}
}

// Update atomically transforms the current value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	next := fn(s.value)
	changed := !s.equals(s.value, next)
	if changed {
		s.value = next
	}
	s.mu.Unlock()

	if changed {
		s.base.notify()
	}
}

// WithEquals configures a custom equality function and returns the
// signal for chaining.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the signal's unique identifier.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals uses == for the common comparable kinds and falls back
// to reflect.DeepEqual for composite values.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	case nil:
		return any(b) == nil
	default:
		return reflect.DeepEqual(a, b)
	}
}
