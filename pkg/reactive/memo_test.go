package reactive

import (
	"sync/atomic"
	"testing"
)

func TestMemoLazyComputation(t *testing.T) {
	var runs atomic.Int32
	count := NewSignal(2)

	double := NewMemo(func() int {
		runs.Add(1)
		return count.Get() * 2
	})

	if got := runs.Load(); got != 0 {
		t.Fatalf("memo should not compute before first read, ran %d times", got)
	}

	if got := double.Get(); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := runs.Load(); got != 1 {
		t.Errorf("expected 1 computation, got %d", got)
	}

	// Cached between reads.
	_ = double.Get()
	if got := runs.Load(); got != 1 {
		t.Errorf("second read should hit cache, ran %d times", got)
	}
}

func TestMemoInvalidation(t *testing.T) {
	var runs atomic.Int32
	count := NewSignal(1)

	double := NewMemo(func() int {
		runs.Add(1)
		return count.Get() * 2
	})

	if got := double.Get(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	count.Set(5)
	if got := double.Get(); got != 10 {
		t.Errorf("expected 10 after source change, got %d", got)
	}
	if got := runs.Load(); got != 2 {
		t.Errorf("expected 2 computations, got %d", got)
	}
}

func TestMemoCoalescesSourceChanges(t *testing.T) {
	var runs atomic.Int32
	count := NewSignal(0)

	double := NewMemo(func() int {
		runs.Add(1)
		return count.Get() * 2
	})
	_ = double.Get()

	// Multiple writes before the next read cost one recomputation.
	count.Set(1)
	count.Set(2)
	count.Set(3)

	if got := double.Get(); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
	if got := runs.Load(); got != 2 {
		t.Errorf("expected 2 computations total, got %d", got)
	}
}

func TestMemoChain(t *testing.T) {
	count := NewSignal(1)
	double := NewMemo(func() int { return count.Get() * 2 })
	quad := NewMemo(func() int { return double.Get() * 2 })

	if got := quad.Get(); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}

	count.Set(3)
	if got := quad.Get(); got != 12 {
		t.Errorf("expected 12 after source change, got %d", got)
	}
}

func TestMemoNotifiesSubscribers(t *testing.T) {
	count := NewSignal(0)
	double := NewMemo(func() int { return count.Get() * 2 })
	listener := newTestListener()

	WithListener(listener, func() {
		_ = double.Get()
	})

	count.Set(1)
	if got := listener.dirtyCount(); got != 1 {
		t.Errorf("expected memo to propagate dirtiness once, got %d", got)
	}
}

func TestMemoRetracksConditionalSources(t *testing.T) {
	var runs atomic.Int32
	flag := NewSignal(true)
	a := NewSignal(1)
	b := NewSignal(10)

	pick := NewMemo(func() int {
		runs.Add(1)
		if flag.Get() {
			return a.Get()
		}
		return b.Get()
	})

	if got := pick.Get(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}

	flag.Set(false)
	if got := pick.Get(); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	runsBefore := runs.Load()

	// a is no longer a source; writing it must not invalidate.
	a.Set(100)
	_ = pick.Get()
	if got := runs.Load(); got != runsBefore {
		t.Errorf("write to dropped source recomputed memo (%d -> %d runs)", runsBefore, got)
	}
}

func TestMemoInvalidateForcesRecompute(t *testing.T) {
	var runs atomic.Int32
	m := NewMemo(func() int {
		runs.Add(1)
		return int(runs.Load())
	})

	if got := m.Get(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	m.Invalidate()
	if got := m.Get(); got != 2 {
		t.Errorf("expected recompute after Invalidate, got %d", got)
	}
}
