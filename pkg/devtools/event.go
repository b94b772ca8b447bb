package devtools

import "github.com/strata-dev/strata/pkg/strata"

// Event is one entry of the devtools stream, JSON-encoded on the
// WebSocket. Type is "mutation" or "action".
type Event struct {
	Type    string `json:"type"`
	StoreID string `json:"storeId"`

	// Mutation fields.
	Kind    string         `json:"kind,omitempty"`
	Key     string         `json:"key,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	State   map[string]any `json:"state,omitempty"`

	// Action fields. Status is "called", "success", or "error".
	Action string `json:"action,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// mutationEvent builds the stream entry for a mutation record.
func mutationEvent(rec strata.MutationRecord, state map[string]any) Event {
	return Event{
		Type:    "mutation",
		StoreID: rec.StoreID,
		Kind:    rec.Kind.String(),
		Key:     rec.Key,
		Payload: rec.Payload,
		State:   state,
	}
}

// actionEvent builds a stream entry for one phase of an action call.
func actionEvent(storeID, action, status, errMsg string) Event {
	return Event{
		Type:    "action",
		StoreID: storeID,
		Action:  action,
		Status:  status,
		Error:   errMsg,
	}
}
