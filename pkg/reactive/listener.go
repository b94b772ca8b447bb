package reactive

// Listener is anything that can be notified when a cell it read changes.
// Memos implement it to invalidate their cache; the store runtime
// implements it to schedule subscriber delivery.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication when a batch is flushed.
	ID() uint64
}

// Cleanup releases a resource owned by a Scope. Cleanups registered on
// a scope run in reverse registration order when the scope is disposed.
type Cleanup func()
