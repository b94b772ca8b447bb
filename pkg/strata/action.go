package strata

import (
	"fmt"
	"sync"
)

// ActionContext is created per action invocation and handed to every
// action subscriber before the action body runs. Subscribers use it to
// register settlement callbacks for this one call.
type ActionContext struct {
	// Name is the invoked action's name.
	Name string

	// Store is the instance the action belongs to.
	Store *Store

	// Args is the invocation argument list.
	Args []any

	mu      sync.Mutex
	after   []func(result any)
	onError []func(err error)
}

// After registers fn to run with the action's return value once it
// settles successfully. For a suspending action that is when the
// returned promise resolves.
func (ac *ActionContext) After(fn func(result any)) {
	if fn == nil {
		return
	}
	ac.mu.Lock()
	ac.after = append(ac.after, fn)
	ac.mu.Unlock()
}

// OnError registers fn to run with the action's error, before the
// error is handed back to the original caller.
func (ac *ActionContext) OnError(fn func(err error)) {
	if fn == nil {
		return
	}
	ac.mu.Lock()
	ac.onError = append(ac.onError, fn)
	ac.mu.Unlock()
}

// fireAfter runs after-callbacks in registration order.
func (ac *ActionContext) fireAfter(result any) {
	ac.mu.Lock()
	callbacks := make([]func(any), len(ac.after))
	copy(callbacks, ac.after)
	ac.mu.Unlock()
	for _, fn := range callbacks {
		fn(result)
	}
}

// fireError runs error-callbacks in registration order.
func (ac *ActionContext) fireError(err error) {
	ac.mu.Lock()
	callbacks := make([]func(error), len(ac.onError))
	copy(callbacks, ac.onError)
	ac.mu.Unlock()
	for _, fn := range callbacks {
		fn(err)
	}
}

// ActionCallback observes action invocations on a store. It runs
// synchronously before the action body, receiving the call context.
type ActionCallback func(ac *ActionContext)

// actionSub is one registered action observer.
type actionSub struct {
	id uint64
	fn ActionCallback
}

// boundAction is an action closed over its instance and wrapped by the
// interception bus.
type boundAction func(args ...any) (any, error)

// OnAction registers an observer for every subsequent action call on
// this store. Observers fire synchronously, in registration order,
// before the action body runs. Without Detached the registration ends
// with the current reactive scope; PostFlush is ignored here. The
// returned function unsubscribes.
func (s *Store) OnAction(fn ActionCallback, opts ...SubscribeOption) func() {
	if fn == nil || s.disposed.Load() {
		return func() {}
	}
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &actionSub{id: nextSubID(), fn: fn}
	s.mu.Lock()
	s.actionSubs = append(s.actionSubs, sub)
	s.mu.Unlock()

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.actionSubs {
			if existing.id == sub.id {
				s.actionSubs = append(s.actionSubs[:i], s.actionSubs[i+1:]...)
				return
			}
		}
	}
	bindScope(cfg, unsub)
	return unsub
}

// Call invokes an action by name through the interception bus and
// returns its outcome. For a suspending action the returned value is a
// *Promise that settles after the action's own promise does and after
// the call's After/OnError callbacks have run.
func (s *Store) Call(name string, args ...any) (any, error) {
	if s.disposed.Load() {
		return nil, fmt.Errorf("%w: %q", ErrDisposed, s.id)
	}
	s.mu.RLock()
	action, ok := s.actions[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q on store %q", ErrUnknownAction, name, s.id)
	}
	return action(args...)
}

// wrapAction builds the interception wrapper for one action: notify
// subscribers with a fresh call context, run the body, then settle the
// context's callbacks with the outcome. Errors are never swallowed;
// they return to the original caller after OnError callbacks ran.
func (s *Store) wrapAction(name string, fn ActionFunc) boundAction {
	return func(args ...any) (any, error) {
		ac := &ActionContext{Name: name, Store: s, Args: args}

		s.mu.RLock()
		subs := make([]*actionSub, len(s.actionSubs))
		copy(subs, s.actionSubs)
		s.mu.RUnlock()
		for _, sub := range subs {
			sub.fn(ac)
		}

		result, err := fn(s, args...)
		if err != nil {
			ac.fireError(err)
			return nil, err
		}

		if inner, ok := result.(*Promise); ok {
			// Suspended call: settle callbacks when the action's own
			// promise does, then settle the caller's promise with the
			// identical outcome.
			outer := NewPromise()
			go func() {
				value, perr := inner.Await()
				if perr != nil {
					ac.fireError(perr)
					outer.Reject(perr)
					return
				}
				ac.fireAfter(value)
				outer.Resolve(value)
			}()
			return outer, nil
		}

		ac.fireAfter(result)
		return result, nil
	}
}
