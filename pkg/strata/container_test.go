package strata

import "testing"

func TestPluginAppliesBeforeFirstAccess(t *testing.T) {
	counter := defineCounter(t, "plugin-tag")

	c := NewContainer()
	c.Use(func(ctx *PluginContext) map[string]any {
		return map[string]any{"tag": "x"}
	})

	s := counter(c)
	if got := s.Ext("tag"); got != "x" {
		t.Errorf("expected plugin-contributed tag x, got %v", got)
	}
}

func TestPluginNotRetroactive(t *testing.T) {
	counter := defineCounter(t, "plugin-late")

	c := NewContainer()
	s := counter(c)

	c.Use(func(ctx *PluginContext) map[string]any {
		return map[string]any{"tag": "late"}
	})

	if s.Ext("tag") != nil {
		t.Error("plugins must not touch instances created before registration")
	}
}

func TestLaterPluginWinsOnConflict(t *testing.T) {
	counter := defineCounter(t, "plugin-conflict")

	c := NewContainer().
		Use(func(ctx *PluginContext) map[string]any {
			return map[string]any{"tag": "first"}
		}).
		Use(func(ctx *PluginContext) map[string]any {
			return map[string]any{"tag": "second"}
		})

	s := counter(c)
	if got := s.Ext("tag"); got != "second" {
		t.Errorf("later plugin should win, got %v", got)
	}
}

func TestPluginSeesDefinitionOptions(t *testing.T) {
	counter := defineCounter(t, "plugin-options")

	c := NewContainer()
	var sawState bool
	c.Use(func(ctx *PluginContext) map[string]any {
		sawState = ctx.Options != nil && ctx.Options.State != nil
		return nil
	})

	_ = counter(c)
	if !sawState {
		t.Error("plugin should receive the definition's options")
	}
}

func TestPluginCanSubscribe(t *testing.T) {
	counter := defineCounter(t, "plugin-subscribe")

	c := NewContainer()
	mutations := 0
	c.Use(func(ctx *PluginContext) map[string]any {
		ctx.Store.Subscribe(func(rec MutationRecord, state map[string]any) {
			mutations++
		}, Detached())
		return nil
	})

	s := counter(c)
	s.Set("count", 1)
	if mutations != 1 {
		t.Errorf("plugin subscription should observe mutations, got %d", mutations)
	}
}

func TestActiveContainerResolution(t *testing.T) {
	counter := defineCounter(t, "active-resolution")

	prev := GetActive()
	defer SetActive(prev)

	c := NewContainer()
	SetActive(c)

	s := counter()
	if s.Container() != c {
		t.Error("implicit access should resolve to the active container")
	}
}

func TestAccessorPanicsWithoutActiveContainer(t *testing.T) {
	counter := defineCounter(t, "no-active")

	prev := GetActive()
	SetActive(nil)
	defer SetActive(prev)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for implicit access with no active container")
		}
	}()
	_ = counter()
}

func TestDuplicateDefinePanics(t *testing.T) {
	defineCounter(t, "dup-id")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate definition")
		}
	}()
	Define("dup-id", Options{
		State: func() map[string]any { return map[string]any{} },
	})
}

func TestDefineRequiresState(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil State function")
		}
	}()
	Define("nil-state", Options{})
}

func TestContainerDispose(t *testing.T) {
	counter := defineCounter(t, "container-dispose")

	c := NewContainer()
	s := counter(c)
	c.Dispose()

	if !s.IsDisposed() {
		t.Error("container dispose should dispose instances")
	}
	if ids := c.StoreIDs(); len(ids) != 0 {
		t.Errorf("expected empty container, got %v", ids)
	}

	// The container is usable again afterwards.
	fresh := counter(c)
	if fresh == s {
		t.Error("expected a fresh instance after container dispose")
	}
}

func TestContainerIsolation(t *testing.T) {
	counter := defineCounter(t, "isolation")

	a := NewContainer()
	b := NewContainer()

	counter(a).Set("count", 10)
	if got := counter(b).Int("count"); got != 0 {
		t.Errorf("containers must not share state, got %d", got)
	}
}
