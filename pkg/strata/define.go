package strata

import (
	"fmt"
	"sync"
)

// GetterFunc computes a derived value from a store. Getters run inside
// a memo, so the cells and sibling getters they read become tracked
// dependencies.
type GetterFunc func(s *Store) any

// ActionFunc is a named mutation routine. It may read and write its
// own store's state and may obtain other stores of the same container
// via s.Container(). Returning a *Promise makes the action suspending:
// the runtime settles callbacks when the promise does.
type ActionFunc func(s *Store, args ...any) (any, error)

// SetupFunc builds a setup-style store imperatively: it installs state
// cells, getters, and actions on the fresh instance via AddState,
// AddGetter, and AddAction.
type SetupFunc func(s *Store)

// Options is the declarative form of a store definition. State must
// produce a fresh, unshared tree on every call and must be free of
// side effects.
type Options struct {
	State   func() map[string]any
	Getters map[string]GetterFunc
	Actions map[string]ActionFunc
}

// Accessor resolves a store definition to the live instance for a
// container: the explicit argument if given, otherwise the active
// container (SetActive). The first resolution per container builds the
// instance; later ones return the same pointer.
//
// Calling an accessor with no argument before SetActive panics.
type Accessor func(container ...*Container) *Store

// definition is the immutable descriptor an Accessor closes over.
type definition struct {
	id      string
	state   func() map[string]any
	getters map[string]GetterFunc
	actions map[string]ActionFunc
	setup   SetupFunc
}

var (
	registryMu sync.Mutex
	registry   = map[string]*definition{}
)

// Define registers an options-style store definition and returns its
// accessor. No instance is created until the accessor is first called.
//
// Definition errors are programmer errors and panic synchronously:
// an empty id, an id that is already defined, or a nil State function.
// Re-defining an id is never silently tolerated.
func Define(id string, opts Options) Accessor {
	if opts.State == nil {
		panic(fmt.Sprintf("strata: store %q has no State function", id))
	}
	def := &definition{
		id:      id,
		state:   opts.State,
		getters: opts.Getters,
		actions: opts.Actions,
	}
	register(def)
	return accessorFor(def)
}

// DefineSetup registers a setup-style store definition: setup runs once
// per instance and installs state, getters, and actions imperatively.
// Reset is unsupported unless setup registers one via Store.OnReset.
func DefineSetup(id string, setup SetupFunc) Accessor {
	if setup == nil {
		panic(fmt.Sprintf("strata: store %q has a nil setup function", id))
	}
	def := &definition{id: id, setup: setup}
	register(def)
	return accessorFor(def)
}

func register(def *definition) {
	if def.id == "" {
		panic("strata: store id must be a non-empty string")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.id]; exists {
		panic(fmt.Sprintf("strata: store %q already defined", def.id))
	}
	registry[def.id] = def
}

func accessorFor(def *definition) Accessor {
	return func(container ...*Container) *Store {
		c := resolveContainer(container)
		return c.getOrCreate(def)
	}
}

func resolveContainer(explicit []*Container) *Container {
	if len(explicit) > 0 && explicit[0] != nil {
		return explicit[0]
	}
	if c := GetActive(); c != nil {
		return c
	}
	panic("strata: no active container; call strata.SetActive or pass one explicitly")
}

// undefine removes a registration. Test helper.
func undefine(id string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, id)
}
