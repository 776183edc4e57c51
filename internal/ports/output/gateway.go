package output

import (
	"context"
	"time"
)

// Gateway is the chat platform as seen by the application. Every failure
// is wrapped with domain.ErrGateway.
type Gateway interface {
	SendDirectMessage(ctx context.Context, userID, content string) error
	SendChannelMessage(ctx context.Context, channelID, content string) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID, glyph string) error
	RemoveReaction(ctx context.Context, channelID, messageID, glyph, userID string) error
	MemberRoles(ctx context.Context, userID string) ([]string, error)
	MemberDisplayName(ctx context.Context, userID string) (string, error)
	// WaitForDirectMessage blocks until userID sends the bot a direct
	// message, the timeout elapses (domain.ErrDialogueTimeout) or ctx ends.
	WaitForDirectMessage(ctx context.Context, userID string, timeout time.Duration) (string, error)
	// RecentOwnMessages lists ids of the latest messages the bot itself
	// posted in channelID, newest first.
	RecentOwnMessages(ctx context.Context, channelID string, limit int) ([]string, error)
	MessageLink(channelID, messageID string) string
}
