package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
	"opboard/pkg/render"
)

// renderTimeout bounds one debounced re-render, which runs detached from
// any inbound request.
const renderTimeout = 15 * time.Second

// BoardConfig controls how posts are rendered.
type BoardConfig struct {
	Location   *time.Location
	TimeLayout string
	Locale     string
}

// Board keeps the live board posts in sync with the store.
type Board struct {
	events     output.EventRepository
	signups    output.SignupRepository
	gateway    output.Gateway
	roles      *entities.RoleConfig
	translator output.T
	clock      clockwork.Clock
	cfg        BoardConfig
	logger     *slog.Logger
}

func NewBoard(
	events output.EventRepository,
	signups output.SignupRepository,
	gateway output.Gateway,
	roles *entities.RoleConfig,
	translator output.T,
	c clockwork.Clock,
	cfg BoardConfig,
	logger *slog.Logger,
) *Board {
	return &Board{
		events:     events,
		signups:    signups,
		gateway:    gateway,
		roles:      roles,
		translator: translator,
		clock:      c,
		cfg:        cfg,
		logger:     logger,
	}
}

// Render builds the post text, resolving the creator's current display
// name. A failed lookup leaves the footer out.
func (b *Board) Render(ctx context.Context, event *entities.Event, signups []entities.Signup) string {
	creator, err := b.gateway.MemberDisplayName(ctx, event.CreatorID)
	if err != nil {
		b.logger.Debug("creator display name unavailable",
			"event_id", event.ID, "creator_id", event.CreatorID, "error", err)
		creator = ""
	}
	return render.Post(event, signups, b.roles, render.Options{
		CreatorDisplayName: creator,
		Location:           b.cfg.Location,
		TimeLayout:         b.cfg.TimeLayout,
		Now:                b.clock.Now(),
		Text: func(key string, data map[string]any) string {
			return b.translator.T(b.cfg.Locale, key, data)
		},
	})
}

// Rerender re-reads the event and its roster and edits the live post.
func (b *Board) Rerender(ctx context.Context, eventID uint) error {
	event, err := b.events.FindByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("rerender event %d: %w", eventID, err)
	}
	signups, err := b.signups.FindByEventID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("rerender event %d: list signups: %w", eventID, err)
	}
	text := b.Render(ctx, event, signups)
	if err := b.gateway.EditMessage(ctx, event.ChannelID, event.MessageID, text); err != nil {
		return fmt.Errorf("rerender event %d: %w", eventID, err)
	}
	return nil
}

// RerenderDetached is the debouncer callback: it owns its context and only
// logs failures. The next mutation triggers another attempt.
func (b *Board) RerenderDetached(eventID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	if err := b.Rerender(ctx, eventID); err != nil {
		b.logger.Warn("board re-render failed", "event_id", eventID, "error", err)
	}
}

// Seed adds every configured glyph to a new post, declined last. Failures
// are logged per glyph and counted.
func (b *Board) Seed(ctx context.Context, channelID, messageID string) int {
	failed := 0
	for _, glyph := range b.roles.Glyphs() {
		if err := b.gateway.AddReaction(ctx, channelID, messageID, glyph); err != nil {
			failed++
			b.logger.Warn("seed reaction failed",
				"message_id", messageID, "glyph", glyph, "error", err)
		}
	}
	return failed
}
