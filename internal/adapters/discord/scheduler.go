package discord

import "context"

// Sweeper runs the reminder and cleanup loops until ctx ends.
type Sweeper interface {
	Run(ctx context.Context) error
}

// OrphanScanner deletes board posts no event refers to.
type OrphanScanner interface {
	Run(ctx context.Context) (int, error)
}

// runScheduledTasks scans the board for orphaned posts once, then runs the
// periodic sweeps until ctx ends.
func (b *Bot) runScheduledTasks(ctx context.Context) error {
	n, err := b.orphans.Run(ctx)
	switch {
	case err != nil:
		b.logger.Warn("orphan scan failed", "error", err)
	case n > 0:
		b.logger.Info("orphaned board posts removed", "count", n)
	}
	return b.sweeper.Run(ctx)
}
