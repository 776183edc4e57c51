package entities

import "time"

// Event is one posting on the board channel. An event is active until it
// is retired (Expired), after which it is never mutated again.
type Event struct {
	ID           uint
	MessageID    string
	ChannelID    string
	CreatorID    string
	Title        string
	Description  string
	EventTime    time.Time // always UTC
	CreatedAt    time.Time
	ReminderSent bool
	Expired      bool
}

// EventField names the single field an edit dialogue changes.
type EventField string

const (
	FieldTitle       EventField = "title"
	FieldDescription EventField = "description"
	FieldTime        EventField = "time"
)

// EventUpdate carries the one field an edit changes. Nil fields are left
// untouched.
type EventUpdate struct {
	Title       *string
	Description *string
	EventTime   *time.Time
}

// Empty reports whether the update changes nothing.
func (u EventUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.EventTime == nil
}
