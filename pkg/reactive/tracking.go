package reactive

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive bookkeeping for one goroutine:
// the listener that reads should subscribe, the open batch depth, and
// the queues drained when the outermost batch completes.
type trackingContext struct {
	listener Listener
	scope    *Scope

	batchDepth int

	// pending accumulates listeners to notify at batch end,
	// deduplicated by ID before delivery.
	pending []Listener

	// deferred accumulates functions to run after the pending
	// listeners have been notified.
	deferred []func()
}

// trackingContexts maps goroutine ID to its context.
var trackingContexts sync.Map

// goroutineID extracts the current goroutine's ID from the runtime
// stack header ("goroutine <id> ...").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

func getTracking() *trackingContext {
	gid := goroutineID()
	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}
	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

func currentListener() Listener {
	return getTracking().listener
}

// setCurrentListener installs the listener subsequent reads subscribe,
// returning the previous one for restoration.
func setCurrentListener(l Listener) Listener {
	ctx := getTracking()
	old := ctx.listener
	ctx.listener = l
	return old
}

func batchDepth() int {
	return getTracking().batchDepth
}

func incrementBatchDepth() {
	getTracking().batchDepth++
}

// decrementBatchDepth reports whether the outermost batch completed.
func decrementBatchDepth() bool {
	ctx := getTracking()
	ctx.batchDepth--
	return ctx.batchDepth == 0
}

func queuePending(l Listener) {
	ctx := getTracking()
	ctx.pending = append(ctx.pending, l)
}

func drainPending() []Listener {
	ctx := getTracking()
	pending := ctx.pending
	ctx.pending = nil
	return pending
}

func queueDeferred(fn func()) {
	ctx := getTracking()
	ctx.deferred = append(ctx.deferred, fn)
}

func drainDeferred() []func() {
	ctx := getTracking()
	deferred := ctx.deferred
	ctx.deferred = nil
	return deferred
}

// WithListener runs fn with l installed as the tracking listener.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}
