package input

import (
	"context"

	"opboard/internal/domain/entities"
)

type SignupUseCase interface {
	HandleReactionAdd(ctx context.Context, reaction entities.Reaction) error
	HandleReactionRemove(ctx context.Context, reaction entities.Reaction) error
}
