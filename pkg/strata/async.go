package strata

import "sync"

// Promise is the awaitable a suspending action returns. The action
// interception wrapper is the only part of the runtime that awaits it:
// when the promise settles, after/on-error subscribers fire and the
// promise handed back to the caller settles with the same outcome.
//
// A promise settles exactly once; later Resolve or Reject calls are
// ignored.
type Promise struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

// NewPromise creates an unsettled promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and returns a promise that settles
// with its outcome. Convenience for authoring suspending actions:
//
//	"fetch": func(s *strata.Store, args ...any) (any, error) {
//	    return strata.Go(func() (any, error) {
//	        return client.Load()
//	    }), nil
//	}
func Go(fn func() (any, error)) *Promise {
	p := NewPromise()
	go func() {
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolve settles the promise with a value.
func (p *Promise) Resolve(value any) {
	p.once.Do(func() {
		p.value = value
		close(p.done)
	})
}

// Reject settles the promise with an error.
func (p *Promise) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Await blocks until the promise settles and returns its outcome.
func (p *Promise) Await() (any, error) {
	<-p.done
	return p.value, p.err
}

// Done returns a channel closed when the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has settled, without blocking.
func (p *Promise) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
