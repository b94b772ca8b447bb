package strata

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Container is the top-level registry: it caches at most one live
// Store per definition id, holds the ordered plugin list, and receives
// snapshot fragments for stores that are not instantiated yet.
//
// Create one per application, or one per isolated unit of work (for
// example a server request) when state must not leak across tenants.
type Container struct {
	mu        sync.Mutex
	instances map[string]*Store
	plugins   []Plugin

	// pending holds hydration fragments for store ids that have no
	// live instance yet, applied on first instantiation.
	pending map[string]map[string]any

	logger   *slog.Logger
	disposed atomic.Bool
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithLogger sets the logger used for hydration failures and
// undeclared-key warnings. Default: slog.Default().
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewContainer creates an empty container.
func NewContainer(opts ...ContainerOption) *Container {
	c := &Container{
		instances: map[string]*Store{},
		pending:   map[string]map[string]any{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// active is the process-wide pointer consulted when an accessor is
// called without an explicit container.
var active atomic.Pointer[Container]

// SetActive installs the container implicit accessor calls resolve to.
// It must be called before any such call, and restored explicitly when
// several containers share a process. Pass nil to clear.
func SetActive(c *Container) {
	if c == nil {
		active.Store((*Container)(nil))
		return
	}
	active.Store(c)
}

// GetActive returns the active container, or nil if none is set.
func GetActive() *Container {
	return active.Load()
}

// Use appends a plugin to the container. The plugin runs against every
// instance created after this call; existing instances are never
// touched retroactively. Returns the container for chaining.
func (c *Container) Use(p Plugin) *Container {
	if p == nil {
		return c
	}
	c.mu.Lock()
	c.plugins = append(c.plugins, p)
	c.mu.Unlock()
	return c
}

// Get returns the live instance for id, if one exists.
func (c *Container) Get(id string) (*Store, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.instances[id]
	return s, ok
}

// StoreIDs returns the ids of all live instances, sorted.
func (c *Container) StoreIDs() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.instances))
	for id := range c.instances {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Dispose disposes every live instance and clears pending fragments.
// The container can be used again afterwards; disposed ids re-create
// fresh instances on next access.
func (c *Container) Dispose() {
	c.mu.Lock()
	instances := make([]*Store, 0, len(c.instances))
	for _, s := range c.instances {
		instances = append(instances, s)
	}
	c.pending = map[string]map[string]any{}
	c.mu.Unlock()

	for _, s := range instances {
		s.Dispose()
	}
}

// getOrCreate returns the cached instance for def.id or builds one:
// run the initial state, wrap it in reactive cells, apply any held
// hydration fragment, bind getters and actions, register the instance,
// then run the plugin pipeline. A panicking state function leaves
// nothing registered.
func (c *Container) getOrCreate(def *definition) *Store {
	c.mu.Lock()
	if s, ok := c.instances[def.id]; ok {
		c.mu.Unlock()
		return s
	}
	fragment := c.pending[def.id]
	c.mu.Unlock()

	s := newStore(c, def)

	// Held snapshot fragment: applied after the initial state exists
	// and before anyone can observe or subscribe to the instance.
	if fragment != nil {
		s.applyFragment(fragment)
	}

	c.mu.Lock()
	if existing, ok := c.instances[def.id]; ok {
		// A plugin or action instantiated the same id re-entrantly.
		c.mu.Unlock()
		return existing
	}
	c.instances[def.id] = s
	delete(c.pending, def.id)
	plugins := make([]Plugin, len(c.plugins))
	copy(plugins, c.plugins)
	c.mu.Unlock()

	applyPlugins(s, def, plugins)
	s.seal()
	return s
}

// remove detaches a disposed instance from the cache.
func (c *Container) remove(id string, s *Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.instances[id] == s {
		delete(c.instances, id)
	}
}
