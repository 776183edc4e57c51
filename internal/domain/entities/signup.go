package entities

import "time"

// Signup is a user's single choice on an event, keyed by (EventID, UserID).
type Signup struct {
	EventID     uint
	UserID      string
	DisplayName string // captured at signup time
	RoleKey     string
	SignedUpAt  time.Time
}

// Declined reports whether the signup is the reserved "declined" choice.
func (s *Signup) Declined() bool {
	return s.RoleKey == DeclinedRoleKey
}
