package application

import (
	"context"
	"fmt"
	"log/slog"

	"opboard/internal/ports/output"
)

// orphanScanLimit is how many recent board messages are checked.
const orphanScanLimit = 100

// Reconciler removes board posts that were sent but never stored, which
// happens when the store write fails right after a successful post.
type Reconciler struct {
	events    output.EventRepository
	gateway   output.Gateway
	channelID string
	logger    *slog.Logger
}

func NewReconciler(events output.EventRepository, gateway output.Gateway, channelID string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		events:    events,
		gateway:   gateway,
		channelID: channelID,
		logger:    logger,
	}
}

// Run deletes the bot's recent board messages that no event, active or
// retired, refers to. It returns how many were deleted.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	ids, err := r.gateway.RecentOwnMessages(ctx, r.channelID, orphanScanLimit)
	if err != nil {
		return 0, fmt.Errorf("orphan scan: %w", err)
	}
	deleted := 0
	for _, id := range ids {
		tracked, err := r.events.MessageTracked(ctx, id)
		if err != nil {
			r.logger.Warn("orphan scan: lookup failed", "message_id", id, "error", err)
			continue
		}
		if tracked {
			continue
		}
		if err := r.gateway.DeleteMessage(ctx, r.channelID, id); err != nil {
			r.logger.Warn("orphan scan: delete failed", "message_id", id, "error", err)
			continue
		}
		r.logger.Info("orphaned board post deleted", "message_id", id)
		deleted++
	}
	return deleted, nil
}
