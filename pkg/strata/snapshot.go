package strata

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the wire format of a serialized container: a plain
// JSON-serializable mapping from store id to state tree.
type Snapshot map[string]map[string]any

// Serialize captures the state of every instantiated store as plain
// data. Values that cannot be represented as JSON (functions, channels,
// host handles) are excluded per key; hydrating a snapshot that lacks
// them never fails on their absence.
func (c *Container) Serialize() Snapshot {
	snapshot := Snapshot{}
	for _, id := range c.StoreIDs() {
		s, ok := c.Get(id)
		if !ok {
			continue
		}
		state := s.StateMap()
		plain := make(map[string]any, len(state))
		for key, value := range state {
			if _, err := json.Marshal(value); err != nil {
				c.logger.Warn("strata: excluding non-serializable state value",
					"store", id, "key", key)
				continue
			}
			plain[key] = value
		}
		snapshot[id] = plain
	}
	return snapshot
}

// SerializeJSON returns the snapshot encoded as JSON.
func (c *Container) SerializeJSON() ([]byte, error) {
	return json.Marshal(c.Serialize())
}

// Hydrate restores store state from a snapshot. Live instances are
// overwritten through Patch semantics, one coalesced mutation each.
// Fragments for ids with no live instance are held and applied when
// that store is first created, after its initial state and before any
// subscriber can observe it.
//
// Hydration runs during startup, so a corrupt fragment is logged and
// skipped rather than allowed to abort the remaining stores.
func (c *Container) Hydrate(snapshot Snapshot) {
	for id, fragment := range snapshot {
		if fragment == nil {
			continue
		}
		if s, ok := c.Get(id); ok {
			c.hydrateLive(s, fragment)
			continue
		}
		c.mu.Lock()
		c.pending[id] = fragment
		c.mu.Unlock()
	}
}

// hydrateLive patches one live store, isolating panics so a single bad
// fragment cannot break the rest of the snapshot.
func (c *Container) hydrateLive(s *Store, fragment map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("strata: hydration failed for store",
				"store", s.ID(), "error", fmt.Sprint(r))
		}
	}()

	// Keys the live state tree does not declare are dropped here
	// rather than routed through the undeclared-key policy: stale
	// snapshots are expected across deploys and must not panic.
	declared := make(map[string]any, len(fragment))
	for key, value := range fragment {
		if !s.Has(key) {
			c.logger.Warn("strata: hydration fragment key not in state, skipping",
				"store", s.ID(), "key", key)
			continue
		}
		declared[key] = value
	}
	s.Patch(declared)
}

// HydrateJSON decodes a JSON snapshot and hydrates from it. The decode
// error, if any, is returned; per-store fragment problems are logged
// as in Hydrate.
func (c *Container) HydrateJSON(data []byte) error {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("strata: decoding snapshot: %w", err)
	}
	c.Hydrate(snapshot)
	return nil
}
