package reactive

// Batch groups signal writes performed inside fn into a single
// notification phase. Affected listeners are collected, deduplicated
// by ID, and marked dirty once when the outermost batch completes.
// Deferred functions queued during the batch run after that.
//
// Batches nest; only the outermost completion flushes.
func Batch(fn func()) {
	incrementBatchDepth()
	defer func() {
		if decrementBatchDepth() {
			flushBatch()
		}
	}()
	fn()
}

// flushBatch notifies pending listeners (deduplicated) and then runs
// deferred functions in queue order. Deferred functions that queue
// further work extend the same flush.
func flushBatch() {
	for {
		pending := drainPending()
		deferred := drainDeferred()
		if len(pending) == 0 && len(deferred) == 0 {
			return
		}

		seen := make(map[uint64]bool, len(pending))
		for _, l := range pending {
			id := l.ID()
			if seen[id] {
				continue
			}
			seen[id] = true
			l.MarkDirty()
		}

		for _, fn := range deferred {
			fn()
		}
	}
}

// Defer schedules fn to run when the outermost batch on this goroutine
// completes, after pending listener notification. Outside any batch it
// runs fn immediately.
func Defer(fn func()) {
	if batchDepth() > 0 {
		queueDeferred(fn)
		return
	}
	fn()
}

// Untracked runs fn with dependency tracking suspended: reads inside
// do not subscribe the current listener.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}
