package entities

import "fmt"

// Reaction is a reaction add or remove delivered by the gateway.
type Reaction struct {
	ChannelID string
	MessageID string
	UserID    string
	Glyph     string
}

// Key identifies the (message, user, glyph) tuple.
func (r Reaction) Key() string {
	return fmt.Sprintf("%s:%s:%s", r.MessageID, r.UserID, r.Glyph)
}
