package input

import "context"

// EventUseCase is the lifecycle manager as seen by command routing. Each
// call runs a direct-message dialogue with the initiator and blocks until
// it ends.
type EventUseCase interface {
	CreateEvent(ctx context.Context, initiatorID string) error
	EditEvent(ctx context.Context, eventID uint, initiatorID string) error
	DeleteEvent(ctx context.Context, eventID uint, initiatorID string) error
}
