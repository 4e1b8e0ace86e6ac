// Package event defines the structured diagnostic events emitted by the
// font-patch engine. These are the public contract: consumers subscribe a
// sink and receive one Event per engine action worth observing.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of engine event.
type Type string

const (
	TypeActivate     Type = "activate"      // a scope was activated
	TypeDeactivate   Type = "deactivate"    // a scope was reverted and released
	TypePatchBatch   Type = "patch_batch"   // one scheduler slice completed
	TypeFrameEntered Type = "frame_entered" // a sub-document boundary was crossed
	TypeFrameDenied  Type = "frame_denied"  // cross-origin denial, permanent
	TypeSweepDone    Type = "sweep_done"    // sentinel sweep finished
	TypeRescan       Type = "rescan"        // full rescan triggered
	TypeError        Type = "error"         // recovered failure from scheduled work
)

// Event is a single diagnostic record.
type Event struct {
	ID        string `json:"id"` // UUIDv7, time-sortable
	Type      Type   `json:"type"`
	Host      string `json:"host,omitempty"`
	Scope     string `json:"scope,omitempty"`  // scope key the event refers to
	Count     int    `json:"count,omitempty"`  // patched elements, swept frames, ...
	Detail    string `json:"detail,omitempty"` // free-form context (error text, frame key)
	Timestamp int64  `json:"timestamp"`        // epoch milliseconds
}

// New creates an Event with a fresh ID and the current timestamp.
func New(t Type) Event {
	return Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Marshal serialises an Event to JSON.
func Marshal(e *Event) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal deserialises an Event from JSON.
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
