package output

import (
	"context"
	"time"

	"opboard/internal/domain/entities"
)

// EventRepository persists board events. Lookups by id or message id only
// return active events and report domain.ErrEventNotFound otherwise.
type EventRepository interface {
	Create(ctx context.Context, event *entities.Event) error
	FindByMessageID(ctx context.Context, messageID string) (*entities.Event, error)
	FindByID(ctx context.Context, id uint) (*entities.Event, error)
	// MessageTracked reports whether any event, active or retired, owns
	// messageID.
	MessageTracked(ctx context.Context, messageID string) (bool, error)
	UpdateFields(ctx context.Context, id uint, update entities.EventUpdate) error
	MarkExpired(ctx context.Context, id uint) error
	MarkReminderSent(ctx context.Context, id uint) error
	// FindNeedingReminder returns active, unreminded events starting in
	// (now, now+lead].
	FindNeedingReminder(ctx context.Context, now time.Time, lead time.Duration) ([]entities.Event, error)
	// FindExpired returns active events whose time is before cutoff.
	FindExpired(ctx context.Context, cutoff time.Time) ([]entities.Event, error)
}
