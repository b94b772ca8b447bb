package strata

import (
	"github.com/strata-dev/strata/pkg/reactive"
)

// MutationKind classifies how a state change was performed.
type MutationKind int

const (
	// MutationDirect is a single cell write via Store.Set.
	MutationDirect MutationKind = iota

	// MutationPatchObject is a bulk merge of a partial state object.
	MutationPatchObject

	// MutationPatchFunc is a mutator callback over the whole state tree.
	MutationPatchFunc
)

// String returns the wire name of the kind.
func (k MutationKind) String() string {
	switch k {
	case MutationDirect:
		return "direct"
	case MutationPatchObject:
		return "patch-object"
	case MutationPatchFunc:
		return "patch-function"
	default:
		return "unknown"
	}
}

// MarshalText makes kinds serialize as their wire names.
func (k MutationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MutationRecord describes one state change of one store. A Patch or
// PatchFunc call produces exactly one record no matter how many fields
// it wrote; each direct Set produces its own.
type MutationRecord struct {
	// StoreID is the id of the mutated store.
	StoreID string `json:"storeId"`

	// Kind is how the mutation was performed.
	Kind MutationKind `json:"kind"`

	// Key is the written field for direct mutations, empty otherwise.
	Key string `json:"key,omitempty"`

	// Payload is the partial object of a patch-object mutation,
	// nil for the other kinds.
	Payload map[string]any `json:"payload,omitempty"`
}

// SubscribeFunc receives a mutation record and a plain snapshot of the
// store's state taken after the mutation.
type SubscribeFunc func(rec MutationRecord, state map[string]any)

// Flush selects when a mutation subscriber is delivered relative to
// the write that produced the record.
type Flush int

const (
	// FlushSync delivers synchronously with the write. Default.
	FlushSync Flush = iota

	// FlushPost defers delivery to the end of the outermost reactive
	// batch enclosing the write; outside a batch the write itself is
	// the flush window, so delivery follows the sync subscribers.
	FlushPost
)

type subscribeConfig struct {
	detached bool
	flush    Flush
}

// SubscribeOption configures Subscribe and OnAction registrations.
type SubscribeOption func(*subscribeConfig)

// Detached keeps the subscription alive until the store is disposed,
// instead of removing it when the current reactive scope ends.
func Detached() SubscribeOption {
	return func(c *subscribeConfig) {
		c.detached = true
	}
}

// PostFlush defers delivery to the end of the enclosing reactive
// batch. Only meaningful for Subscribe; OnAction ignores it.
func PostFlush() SubscribeOption {
	return func(c *subscribeConfig) {
		c.flush = FlushPost
	}
}

// subscription is one registered mutation observer.
type subscription struct {
	id    uint64
	fn    SubscribeFunc
	flush Flush
}

// bindScope removes a non-detached registration when the reactive
// scope that performed it is disposed.
func bindScope(cfg subscribeConfig, unsub func()) {
	if cfg.detached {
		return
	}
	if scope := reactive.CurrentScope(); scope != nil {
		scope.OnCleanup(unsub)
	}
}
