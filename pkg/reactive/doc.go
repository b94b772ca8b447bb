// Package reactive provides the reactive-value primitives that the
// strata store runtime is built on: signals (mutable cells that track
// their readers), memos (lazy cached derivations), batches (grouped
// notification), and scopes (ownership trees for automatic cleanup).
//
// Reads performed while a Listener is installed on the current
// goroutine subscribe that listener to the cell, so dependents are
// re-evaluated precisely when their inputs change:
//
//	count := reactive.NewSignal(0)
//	double := reactive.NewMemo(func() int { return count.Get() * 2 })
//
//	double.Get() // 0
//	count.Set(2)
//	double.Get() // 4, recomputed lazily
//
// The package is safe for concurrent use, but the notification model
// is cooperative: subscribers run synchronously on the goroutine that
// performed the write (or drained the batch).
package reactive
