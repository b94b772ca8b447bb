package strata

// PluginContext is handed to each plugin as a new store instance is
// created.
type PluginContext struct {
	// Container owning the new instance.
	Container *Container

	// Store is the freshly created, not yet sealed instance. Plugins
	// may read and write its state, subscribe to mutations or actions,
	// or add reactive fields via AddState (those participate in
	// snapshots like declared fields).
	Store *Store

	// Options is the definition's declarative config, nil for
	// setup-style stores.
	Options *Options
}

// Plugin augments every store instance a container creates after the
// plugin was registered via Container.Use. A non-nil returned map is
// shallow-merged into the store's extension slot; when several plugins
// return the same key, the later registration wins.
type Plugin func(ctx *PluginContext) map[string]any

// applyPlugins runs the pipeline over a new instance, in registration
// order.
func applyPlugins(s *Store, def *definition, plugins []Plugin) {
	if len(plugins) == 0 {
		return
	}

	var opts *Options
	if def.setup == nil {
		opts = &Options{
			State:   def.state,
			Getters: def.getters,
			Actions: def.actions,
		}
	}

	ctx := &PluginContext{
		Container: s.container,
		Store:     s,
		Options:   opts,
	}
	for _, plugin := range plugins {
		contributed := plugin(ctx)
		for key, value := range contributed {
			s.SetExt(key, value)
		}
	}
}
