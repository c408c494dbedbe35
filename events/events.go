// Package events defines the fire-and-forget event sink the core publishes
// notable state changes to. Delivery is best effort: the core never depends
// on a subscriber receiving anything.
package events

import "time"

// Event types published by the core.
const (
	TypeUploaded        = "item.uploaded"
	TypeMoved           = "item.moved"
	TypeTrashed         = "item.trashed"
	TypeRestored        = "item.restored"
	TypePurged          = "item.purged"
	TypeShareCreated    = "share.created"
	TypeShareDeleted    = "share.deleted"
	TypeVersionRestored = "version.restored"
)

// Event is a notable state change.
type Event struct {
	Type string    `json:"type"`
	Path string    `json:"path,omitempty"`
	ID   string    `json:"id,omitempty"`
	Time time.Time `json:"time"`
}

// Sink receives events. Implementations must not block the publisher.
type Sink interface {
	Publish(ev Event)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Publish(Event) {}
