// Package strata is a reactive state-container runtime. Applications
// declare named stores, each a bundle of reactive state, memoized
// getters, and actions, and access at most one live instance of each
// per Container. Observers subscribe to state mutations and action
// lifecycles without the store author's cooperation, and plugins
// augment every instance a container creates.
//
// Declaring and using a store:
//
//	var useCounter = strata.Define("counter", strata.Options{
//	    State: func() map[string]any {
//	        return map[string]any{"count": 0}
//	    },
//	    Getters: map[string]strata.GetterFunc{
//	        "double": func(s *strata.Store) any { return s.Int("count") * 2 },
//	    },
//	    Actions: map[string]strata.ActionFunc{
//	        "increment": func(s *strata.Store, args ...any) (any, error) {
//	            s.Set("count", s.Int("count")+1)
//	            return nil, nil
//	        },
//	    },
//	})
//
//	c := strata.NewContainer()
//	strata.SetActive(c)
//
//	counter := useCounter()
//	counter.Call("increment")
//	counter.Getter("double") // 2
//
// State lives in reactive cells (package reactive), so getters are
// recomputed lazily and exactly when their dependencies change.
// Containers serialize to a plain JSON object keyed by store id and
// hydrate from one, including fragments for stores that have not been
// instantiated yet.
package strata
