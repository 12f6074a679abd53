// pkg/core/events.go
package core

import "fmt"

// EventKind tags a world event delivered to the episode lifecycle.
type EventKind string

const (
	EventCheckpoint  EventKind = "checkpoint"
	EventEndLap      EventKind = "end-lap"
	EventWall        EventKind = "wall"
	EventManualReset EventKind = "manual-reset"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventCheckpoint, EventEndLap, EventWall, EventManualReset:
		return true
	}
	return false
}

// WorldEvent is a contact or control event from outside the core.
// Tag identifies the checkpoint for EventCheckpoint and is opaque otherwise.
// ContactID identifies one physical contact; zero means "not deduplicated".
type WorldEvent struct {
	Kind      EventKind `json:"kind"`
	Tag       string    `json:"tag,omitempty"`
	ContactID uint64    `json:"contactId,omitempty"`
}

func (e WorldEvent) String() string {
	if e.Tag == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Tag)
}
