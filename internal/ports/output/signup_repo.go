package output

import (
	"context"

	"opboard/internal/domain/entities"
)

type SignupRepository interface {
	// Upsert inserts or replaces the (event, user) signup.
	Upsert(ctx context.Context, signup *entities.Signup) error
	// Remove deletes the (event, user) signup and reports whether a row
	// existed.
	Remove(ctx context.Context, eventID uint, userID string) (bool, error)
	Find(ctx context.Context, eventID uint, userID string) (*entities.Signup, error)
	FindByEventID(ctx context.Context, eventID uint) ([]entities.Signup, error)
	FindNonDeclined(ctx context.Context, eventID uint) ([]entities.Signup, error)
	DeleteByEventID(ctx context.Context, eventID uint) (int64, error)
}
