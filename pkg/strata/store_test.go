package strata

import (
	"testing"

	"github.com/strata-dev/strata/pkg/reactive"
)

// defineCounter registers the canonical counter store under id and
// removes the definition when the test ends.
func defineCounter(t *testing.T, id string) Accessor {
	t.Helper()
	accessor := Define(id, Options{
		State: func() map[string]any {
			return map[string]any{"count": 0}
		},
		Getters: map[string]GetterFunc{
			"double": func(s *Store) any { return s.Int("count") * 2 },
		},
		Actions: map[string]ActionFunc{
			"increment": func(s *Store, args ...any) (any, error) {
				s.Set("count", s.Int("count")+1)
				return nil, nil
			},
		},
	})
	t.Cleanup(func() { undefine(id) })
	return accessor
}

func TestAccessorReturnsSingletonPerContainer(t *testing.T) {
	counter := defineCounter(t, "singleton-counter")
	c := NewContainer()

	first := counter(c)
	second := counter(c)
	if first != second {
		t.Error("expected identical instance for repeated access on one container")
	}

	other := NewContainer()
	if counter(other) == first {
		t.Error("expected distinct instances across containers")
	}
}

func TestCounterScenario(t *testing.T) {
	counter := defineCounter(t, "scenario-counter")
	c := NewContainer()
	s := counter(c)

	if _, err := s.Call("increment"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := s.Call("increment"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	if got := s.Int("count"); got != 2 {
		t.Errorf("expected count 2, got %d", got)
	}
	if got := s.Getter("double"); got != 4 {
		t.Errorf("expected double 4, got %v", got)
	}
}

func TestGetterMemoization(t *testing.T) {
	runs := 0
	id := "memo-getter"
	accessor := Define(id, Options{
		State: func() map[string]any { return map[string]any{"n": 1} },
		Getters: map[string]GetterFunc{
			"squared": func(s *Store) any {
				runs++
				n := s.Int("n")
				return n * n
			},
		},
	})
	t.Cleanup(func() { undefine(id) })

	s := accessor(NewContainer())
	if got := s.Getter("squared"); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	_ = s.Getter("squared")
	if runs != 1 {
		t.Errorf("repeated read should hit cache, got %d runs", runs)
	}

	s.Set("n", 3)
	if got := s.Getter("squared"); got != 9 {
		t.Errorf("expected 9 after write, got %v", got)
	}
	if runs != 2 {
		t.Errorf("expected exactly 2 computations, got %d", runs)
	}
}

func TestGetterReferencesSiblingGetter(t *testing.T) {
	id := "sibling-getter"
	accessor := Define(id, Options{
		State: func() map[string]any { return map[string]any{"count": 2} },
		Getters: map[string]GetterFunc{
			// quadruple reads double, which is declared after it.
			"quadruple": func(s *Store) any { return s.Getter("double").(int) * 2 },
			"double":    func(s *Store) any { return s.Int("count") * 2 },
		},
	})
	t.Cleanup(func() { undefine(id) })

	s := accessor(NewContainer())
	if got := s.Getter("quadruple"); got != 8 {
		t.Fatalf("expected 8, got %v", got)
	}

	s.Set("count", 5)
	if got := s.Getter("quadruple"); got != 20 {
		t.Errorf("expected 20 after write, got %v", got)
	}
}

func TestPatchDeliversSingleRecord(t *testing.T) {
	id := "patch-single"
	accessor := Define(id, Options{
		State: func() map[string]any {
			return map[string]any{"a": 1, "b": 2, "c": 3}
		},
	})
	t.Cleanup(func() { undefine(id) })
	s := accessor(NewContainer())

	var records []MutationRecord
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		records = append(records, rec)
	}, Detached())

	s.Patch(map[string]any{"a": 10, "b": 20, "c": 30})

	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record for 3-field patch, got %d", len(records))
	}
	rec := records[0]
	if rec.Kind != MutationPatchObject {
		t.Errorf("expected kind patch-object, got %s", rec.Kind)
	}
	if rec.StoreID != id {
		t.Errorf("expected store id %q, got %q", id, rec.StoreID)
	}
	if len(rec.Payload) != 3 || rec.Payload["a"] != 10 {
		t.Errorf("unexpected payload %v", rec.Payload)
	}
}

func TestPatchRecordScenario(t *testing.T) {
	counter := defineCounter(t, "patch-scenario")
	s := counter(NewContainer())

	var got []MutationRecord
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		got = append(got, rec)
	}, Detached())

	s.Patch(map[string]any{"count": 10})

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Kind.String() != "patch-object" {
		t.Errorf("expected patch-object, got %s", got[0].Kind)
	}
	if got[0].Payload["count"] != 10 {
		t.Errorf("expected payload count=10, got %v", got[0].Payload)
	}
}

func TestDirectWritesProduceOwnRecords(t *testing.T) {
	counter := defineCounter(t, "direct-records")
	s := counter(NewContainer())

	var records []MutationRecord
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		records = append(records, rec)
	}, Detached())

	s.Set("count", 1)
	s.Set("count", 2)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Kind != MutationDirect {
			t.Errorf("expected direct record, got %s", rec.Kind)
		}
		if rec.Key != "count" {
			t.Errorf("expected key count, got %q", rec.Key)
		}
	}
	if state := s.Int("count"); state != 2 {
		t.Errorf("expected count 2, got %d", state)
	}
}

func TestPatchFuncCoalesces(t *testing.T) {
	id := "patch-func"
	accessor := Define(id, Options{
		State: func() map[string]any {
			return map[string]any{"x": 1, "y": 1}
		},
	})
	t.Cleanup(func() { undefine(id) })
	s := accessor(NewContainer())

	var records []MutationRecord
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		records = append(records, rec)
	}, Detached())

	s.PatchFunc(func(state map[string]any) {
		state["x"] = 5
		state["y"] = 6
	})

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Kind != MutationPatchFunc {
		t.Errorf("expected patch-function, got %s", records[0].Kind)
	}
	if s.Int("x") != 5 || s.Int("y") != 6 {
		t.Errorf("mutations not applied: x=%v y=%v", s.Peek("x"), s.Peek("y"))
	}
}

func TestSubscriberOrderAndSnapshot(t *testing.T) {
	counter := defineCounter(t, "sub-order")
	s := counter(NewContainer())

	var order []string
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		order = append(order, "first")
		if state["count"] != 1 {
			t.Errorf("expected snapshot count=1, got %v", state["count"])
		}
	}, Detached())
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		order = append(order, "second")
	}, Detached())

	s.Set("count", 1)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected registration order [first second], got %v", order)
	}
}

func TestPostFlushDeliveredAtBatchEnd(t *testing.T) {
	counter := defineCounter(t, "post-flush")
	s := counter(NewContainer())

	var order []string
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		order = append(order, "post")
	}, Detached(), PostFlush())
	s.Subscribe(func(rec MutationRecord, state map[string]any) {
		order = append(order, "sync")
	}, Detached())

	reactive.Batch(func() {
		s.Set("count", 1)
		if len(order) != 1 || order[0] != "sync" {
			t.Errorf("inside batch, only sync subscriber should have run, got %v", order)
		}
	})

	if len(order) != 2 || order[1] != "post" {
		t.Errorf("post subscriber should run at batch end, got %v", order)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	counter := defineCounter(t, "unsub")
	s := counter(NewContainer())

	calls := 0
	unsub := s.Subscribe(func(rec MutationRecord, state map[string]any) {
		calls++
	}, Detached())

	s.Set("count", 1)
	unsub()
	s.Set("count", 2)

	if calls != 1 {
		t.Errorf("expected 1 delivery before unsubscribe, got %d", calls)
	}
}

func TestScopeBoundSubscriptionDetaches(t *testing.T) {
	counter := defineCounter(t, "scope-sub")
	s := counter(NewContainer())

	calls := 0
	scope := reactive.NewScope(nil)
	reactive.WithScope(scope, func() {
		s.Subscribe(func(rec MutationRecord, state map[string]any) {
			calls++
		})
	})

	s.Set("count", 1)
	scope.Dispose()
	s.Set("count", 2)

	if calls != 1 {
		t.Errorf("scope-bound subscription should detach on dispose, got %d calls", calls)
	}
}

func TestDetachedSubscriptionSurvivesScope(t *testing.T) {
	counter := defineCounter(t, "detached-sub")
	s := counter(NewContainer())

	calls := 0
	scope := reactive.NewScope(nil)
	reactive.WithScope(scope, func() {
		s.Subscribe(func(rec MutationRecord, state map[string]any) {
			calls++
		}, Detached())
	})

	scope.Dispose()
	s.Set("count", 1)

	if calls != 1 {
		t.Errorf("detached subscription should survive scope disposal, got %d calls", calls)
	}
}

func TestDisposeCreatesFreshInstance(t *testing.T) {
	counter := defineCounter(t, "dispose-fresh")
	c := NewContainer()
	first := counter(c)
	first.Set("count", 7)

	calls := 0
	first.Subscribe(func(rec MutationRecord, state map[string]any) {
		calls++
	}, Detached())

	first.Dispose()
	if !first.IsDisposed() {
		t.Fatal("expected disposed store")
	}

	second := counter(c)
	if second == first {
		t.Fatal("expected a new instance after dispose")
	}
	if got := second.Int("count"); got != 0 {
		t.Errorf("expected fresh initial state, got count=%d", got)
	}

	second.Set("count", 1)
	if calls != 0 {
		t.Errorf("subscriptions of disposed instance must be inert, got %d calls", calls)
	}
}

func TestReset(t *testing.T) {
	counter := defineCounter(t, "reset")
	s := counter(NewContainer())

	s.Set("count", 41)
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := s.Int("count"); got != 0 {
		t.Errorf("expected count reset to 0, got %d", got)
	}
}

func TestUndeclaredKeyWarnsAndDrops(t *testing.T) {
	counter := defineCounter(t, "undeclared-warn")
	s := counter(NewContainer())

	s.Set("missing", 1)
	if s.Has("missing") {
		t.Error("undeclared key must not be added to the state tree")
	}

	s.Patch(map[string]any{"count": 2, "missing": 3})
	if got := s.Int("count"); got != 2 {
		t.Errorf("declared keys of a mixed patch should apply, got count=%d", got)
	}
	if s.Has("missing") {
		t.Error("undeclared key of a patch must be dropped")
	}
}

func TestUndeclaredKeyPanicsInDebugMode(t *testing.T) {
	counter := defineCounter(t, "undeclared-debug")
	s := counter(NewContainer())

	DebugMode = true
	defer func() { DebugMode = false }()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for undeclared key write in DebugMode")
		}
	}()
	s.Set("missing", 1)
}

func TestSetupStyleStore(t *testing.T) {
	id := "setup-store"
	accessor := DefineSetup(id, func(s *Store) {
		s.AddState("items", []any{})
		s.AddGetter("size", func(s *Store) any {
			items, _ := s.Get("items").([]any)
			return len(items)
		})
		s.AddAction("push", func(s *Store, args ...any) (any, error) {
			items, _ := s.Get("items").([]any)
			s.Set("items", append(items, args...))
			return nil, nil
		})
	})
	t.Cleanup(func() { undefine(id) })

	s := accessor(NewContainer())
	if _, err := s.Call("push", "a", "b"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got := s.Getter("size"); got != 2 {
		t.Errorf("expected size 2, got %v", got)
	}

	if err := s.Reset(); err != ErrResetUnsupported {
		t.Errorf("setup store without OnReset should fail reset, got %v", err)
	}
}

func TestSetupStoreCustomReset(t *testing.T) {
	id := "setup-reset"
	accessor := DefineSetup(id, func(s *Store) {
		s.AddState("n", 1)
		s.OnReset(func() {
			s.Patch(map[string]any{"n": 1})
		})
	})
	t.Cleanup(func() { undefine(id) })

	s := accessor(NewContainer())
	s.Set("n", 99)
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := s.Int("n"); got != 1 {
		t.Errorf("expected n reset to 1, got %d", got)
	}
}

func TestInitialStateFailureRegistersNothing(t *testing.T) {
	id := "failing-state"
	accessor := Define(id, Options{
		State: func() map[string]any {
			panic("boom")
		},
	})
	t.Cleanup(func() { undefine(id) })

	c := NewContainer()
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected initial state panic to propagate")
			}
		}()
		accessor(c)
	}()

	if _, ok := c.Get(id); ok {
		t.Error("failed instantiation must not leave a half-built instance")
	}
}
