package core

import "time"

// EventType enumerates SDK lifecycle events.
type EventType string

const (
	EventIdentitySet      EventType = "identity_set"
	EventIdentityCleared  EventType = "identity_cleared"
	EventDeviceIDAssigned EventType = "device_id_assigned"
	EventEntryUploaded    EventType = "entry_uploaded"
	EventEntryDeleted     EventType = "entry_deleted"
	EventRequestCompleted EventType = "request_completed"
	EventRequestFailed    EventType = "request_failed"
)

// AllEventTypes lists every event type, for subscribers that want everything.
var AllEventTypes = []EventType{
	EventIdentitySet,
	EventIdentityCleared,
	EventDeviceIDAssigned,
	EventEntryUploaded,
	EventEntryDeleted,
	EventRequestCompleted,
	EventRequestFailed,
}

// Event represents an immutable SDK event.
type Event struct {
	Type      EventType      `json:"type"`
	Time      time.Time      `json:"time"`
	Username  string         `json:"username,omitempty"`
	Mode      Mode           `json:"mode,omitempty"`
	Key       string         `json:"key,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewIdentitySet(username string, mode Mode) Event {
	return Event{Type: EventIdentitySet, Time: time.Now().UTC(), Username: username, Mode: mode}
}

func NewIdentityCleared() Event {
	return Event{Type: EventIdentityCleared, Time: time.Now().UTC()}
}

func NewDeviceIDAssigned(id string) Event {
	return Event{Type: EventDeviceIDAssigned, Time: time.Now().UTC(), Metadata: map[string]any{"device_id": id}}
}

func NewEntryUploaded(key, username string) Event {
	return Event{Type: EventEntryUploaded, Time: time.Now().UTC(), Key: key, Username: username}
}

func NewEntryDeleted(key string) Event {
	return Event{Type: EventEntryDeleted, Time: time.Now().UTC(), Key: key}
}

// NewRequestOutcome reports a finished round trip; err selects the failed type.
func NewRequestOutcome(operation string, d time.Duration, err error) Event {
	ev := Event{Type: EventRequestCompleted, Time: time.Now().UTC(), Operation: operation, Duration: d}
	if err != nil {
		ev.Type = EventRequestFailed
		ev.Error = err.Error()
	}
	return ev
}
