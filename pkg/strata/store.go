package strata

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/strata-dev/strata/pkg/reactive"
)

// subIDCounter issues unique ids for subscriptions.
var subIDCounter uint64

func nextSubID() uint64 {
	return atomic.AddUint64(&subIDCounter, 1)
}

// Store is the live, mutable instance of one definition within one
// container. State fields live in reactive cells keyed by their
// top-level name; getters are memos over those cells; actions are
// bound routines wrapped by the interception bus.
//
// For a given (container, id) pair at most one Store exists at a time.
// Disposing it detaches every subscription and frees the id for a
// fresh instance.
type Store struct {
	id        string
	container *Container
	def       *definition
	logger    *slog.Logger

	mu      sync.RWMutex
	cells   map[string]*reactive.Signal[any]
	keys    []string
	getters map[string]*reactive.Memo[any]
	actions map[string]boundAction
	ext     map[string]any

	subs       []*subscription
	actionSubs []*actionSub

	// sealed flips once the plugin pipeline has run; from then on the
	// shape of the state tree is fixed.
	sealed bool

	resetFn    func()
	disposeFns []func()
	disposed   atomic.Bool
}

// newStore assembles an instance: fresh initial state wrapped in
// cells, getters bound as memos, actions bound through the
// interception wrapper. A panicking state function propagates and
// leaves nothing behind.
func newStore(c *Container, def *definition) *Store {
	s := &Store{
		id:        def.id,
		container: c,
		def:       def,
		logger:    c.logger,
		cells:     map[string]*reactive.Signal[any]{},
		getters:   map[string]*reactive.Memo[any]{},
		actions:   map[string]boundAction{},
		ext:       map[string]any{},
	}

	if def.setup != nil {
		def.setup(s)
		return s
	}

	initial := def.state()
	keys := make([]string, 0, len(initial))
	for k := range initial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.AddState(k, initial[k])
	}
	for name, fn := range def.getters {
		s.AddGetter(name, fn)
	}
	for name, fn := range def.actions {
		s.AddAction(name, fn)
	}
	return s
}

// ID returns the store's definition id.
func (s *Store) ID() string {
	return s.id
}

// Container returns the owning container, through which actions may
// obtain sibling stores.
func (s *Store) Container() *Container {
	return s.container
}

// AddState installs a new reactive state field. Valid while the store
// is being built (setup functions and plugins); once the instance is
// sealed the state shape is fixed and the undeclared-key policy
// applies. Plugin-added fields participate in snapshots like declared
// ones.
func (s *Store) AddState(key string, value any) {
	s.mu.Lock()
	if s.sealed {
		s.mu.Unlock()
		s.undeclaredKey(key)
		return
	}
	if _, exists := s.cells[key]; exists {
		s.cells[key].Set(value)
		s.mu.Unlock()
		return
	}
	s.cells[key] = reactive.NewSignal(value)
	s.keys = append(s.keys, key)
	s.mu.Unlock()
}

// AddGetter installs a memoized derived value. Panics after sealing.
func (s *Store) AddGetter(name string, fn GetterFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		panic(fmt.Sprintf("strata: getter %q added to sealed store %q", name, s.id))
	}
	s.getters[name] = reactive.NewMemo(func() any { return fn(s) })
}

// AddAction installs an action, wrapped through the interception bus.
// Panics after sealing.
func (s *Store) AddAction(name string, fn ActionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		panic(fmt.Sprintf("strata: action %q added to sealed store %q", name, s.id))
	}
	s.actions[name] = s.wrapAction(name, fn)
}

// seal fixes the state shape after the plugin pipeline has run.
func (s *Store) seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Get reads a state field, subscribing the current reactive listener.
// Reading an undeclared key yields nil.
func (s *Store) Get(key string) any {
	s.mu.RLock()
	cell, ok := s.cells[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return cell.Get()
}

// Peek reads a state field without creating a dependency.
func (s *Store) Peek(key string) any {
	s.mu.RLock()
	cell, ok := s.cells[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return cell.Peek()
}

// Has reports whether key is a declared state field.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cells[key]
	return ok
}

// Int reads a state field as int. JSON hydration stores numbers as
// float64; this coerces them back. Unknown keys and other types yield
// zero.
func (s *Store) Int(key string) int {
	switch v := s.Get(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Float reads a state field as float64, coercing integer values.
func (s *Store) Float(key string) float64 {
	switch v := s.Get(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// String reads a state field as string, or "" for other types.
func (s *Store) String(key string) string {
	if v, ok := s.Get(key).(string); ok {
		return v
	}
	return ""
}

// Bool reads a state field as bool, or false for other types.
func (s *Store) Bool(key string) bool {
	if v, ok := s.Get(key).(bool); ok {
		return v
	}
	return false
}

// Set writes one state field and delivers a direct mutation record.
// Writes to undeclared keys follow the undeclared-key policy: panic
// when DebugMode is set, warn and drop otherwise.
func (s *Store) Set(key string, value any) {
	if s.disposed.Load() {
		return
	}
	s.mu.RLock()
	cell, ok := s.cells[key]
	s.mu.RUnlock()
	if !ok {
		s.undeclaredKey(key)
		return
	}
	cell.Set(value)
	s.emit(MutationRecord{StoreID: s.id, Kind: MutationDirect, Key: key})
}

// Patch merges a partial state object. All field writes coalesce into
// a single reactive batch and exactly one patch-object mutation record
// carrying the partial payload.
func (s *Store) Patch(partial map[string]any) {
	if s.disposed.Load() || len(partial) == 0 {
		return
	}

	applied := make(map[string]any, len(partial))
	writes := make([]func(), 0, len(partial))
	var undeclared []string
	s.mu.RLock()
	for key, value := range partial {
		cell, ok := s.cells[key]
		if !ok {
			undeclared = append(undeclared, key)
			continue
		}
		applied[key] = value
		cell, value := cell, value
		writes = append(writes, func() { cell.Set(value) })
	}
	s.mu.RUnlock()

	for _, key := range undeclared {
		s.undeclaredKey(key)
	}
	if len(applied) == 0 {
		return
	}

	reactive.Batch(func() {
		for _, write := range writes {
			write()
		}
	})
	s.emit(MutationRecord{StoreID: s.id, Kind: MutationPatchObject, Payload: applied})
}

// PatchFunc hands a mutable copy of the state tree to fn and writes
// back every field it changed, coalesced into a single batch and one
// patch-function mutation record.
func (s *Store) PatchFunc(fn func(state map[string]any)) {
	if s.disposed.Load() || fn == nil {
		return
	}

	state := s.StateMap()
	fn(state)

	s.mu.RLock()
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	cells := make(map[string]*reactive.Signal[any], len(s.cells))
	for k, c := range s.cells {
		cells[k] = c
	}
	s.mu.RUnlock()

	for key := range state {
		if _, ok := cells[key]; !ok {
			s.undeclaredKey(key)
		}
	}

	reactive.Batch(func() {
		for _, key := range keys {
			if value, ok := state[key]; ok {
				cells[key].Set(value)
			}
		}
	})
	s.emit(MutationRecord{StoreID: s.id, Kind: MutationPatchFunc})
}

// Getter returns the memoized derived value by name, recomputing only
// when a tracked dependency changed. Unknown names yield nil.
func (s *Store) Getter(name string) any {
	s.mu.RLock()
	memo, ok := s.getters[name]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return memo.Get()
}

// StateMap returns a plain shallow copy of the current state tree,
// without creating dependencies.
func (s *Store) StateMap() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(map[string]any, len(s.cells))
	for key, cell := range s.cells {
		state[key] = cell.Peek()
	}
	return state
}

// Keys returns the declared state field names in declaration order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Ext returns a plugin-contributed extension value, or nil.
func (s *Store) Ext(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ext[key]
}

// SetExt attaches an extension value to the store.
func (s *Store) SetExt(key string, value any) {
	s.mu.Lock()
	s.ext[key] = value
	s.mu.Unlock()
}

// OnReset registers a custom reset routine. Setup-style stores need
// one for Reset to work; a routine registered on an options-style
// store overrides the default re-run of the initial state.
func (s *Store) OnReset(fn func()) {
	s.resetFn = fn
}

// Reset restores the initial state. Options-style stores re-run their
// State function and apply it as a single patch; setup-style stores
// run the routine registered via OnReset, or fail with
// ErrResetUnsupported.
func (s *Store) Reset() error {
	if s.disposed.Load() {
		return ErrDisposed
	}
	if s.resetFn != nil {
		s.resetFn()
		return nil
	}
	if s.def.state == nil {
		return ErrResetUnsupported
	}
	s.Patch(s.def.state())
	return nil
}

// Subscribe registers a mutation observer. Subscribers fire in
// registration order; delivery timing follows the flush option.
// Without Detached, the subscription is removed when the current
// reactive scope is disposed. The returned function unsubscribes.
func (s *Store) Subscribe(fn SubscribeFunc, opts ...SubscribeOption) func() {
	if fn == nil || s.disposed.Load() {
		return func() {}
	}
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &subscription{id: nextSubID(), fn: fn, flush: cfg.flush}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subs {
			if existing.id == sub.id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
	bindScope(cfg, unsub)
	return unsub
}

// emit delivers one mutation record to every subscriber, with a state
// snapshot taken at mutation time. Post-flush subscribers are deferred
// to the end of the enclosing reactive batch.
func (s *Store) emit(rec MutationRecord) {
	if s.disposed.Load() {
		return
	}
	s.mu.RLock()
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	state := s.StateMap()
	for _, sub := range subs {
		if sub.flush == FlushPost {
			sub := sub
			reactive.Defer(func() { sub.fn(rec, state) })
			continue
		}
		sub.fn(rec, state)
	}
}

// applyFragment writes a held hydration fragment into the cells,
// before any subscriber can exist. Unknown keys are logged and
// skipped so one stale fragment cannot fail instantiation.
func (s *Store) applyFragment(fragment map[string]any) {
	for key, value := range fragment {
		s.mu.RLock()
		cell, ok := s.cells[key]
		s.mu.RUnlock()
		if !ok {
			s.logger.Warn("strata: hydration fragment key not in state, skipping",
				"store", s.id, "key", key)
			continue
		}
		cell.Set(value)
	}
}

// OnDispose registers fn to run when the store is disposed. Plugins
// use this to release whatever they attached.
func (s *Store) OnDispose(fn func()) {
	if fn == nil {
		return
	}
	if s.disposed.Load() {
		fn()
		return
	}
	s.mu.Lock()
	s.disposeFns = append(s.disposeFns, fn)
	s.mu.Unlock()
}

// Dispose detaches every subscription, invalidates getter caches, runs
// dispose hooks, and removes the instance from its container. The id
// may be accessed again afterwards, producing a fresh instance.
// Idempotent.
func (s *Store) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	s.mu.Lock()
	s.subs = nil
	s.actionSubs = nil
	disposeFns := s.disposeFns
	s.disposeFns = nil
	getters := make([]*reactive.Memo[any], 0, len(s.getters))
	for _, m := range s.getters {
		getters = append(getters, m)
	}
	s.mu.Unlock()

	for _, m := range getters {
		m.Invalidate()
	}
	for _, fn := range disposeFns {
		fn()
	}
	s.container.remove(s.id, s)
}

// IsDisposed reports whether Dispose has run.
func (s *Store) IsDisposed() bool {
	return s.disposed.Load()
}

// undeclaredKey applies the fixed-shape policy for writes to keys the
// state tree never declared.
func (s *Store) undeclaredKey(key string) {
	if DebugMode {
		panic(fmt.Sprintf("strata: write to undeclared state key %q on store %q", key, s.id))
	}
	s.logger.Warn("strata: dropping write to undeclared state key",
		"store", s.id, "key", key)
}
