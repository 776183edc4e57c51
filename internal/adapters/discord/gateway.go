package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"opboard/internal/domain"
	"opboard/internal/ports/output"
)

// reactionPace spaces out reaction adds so seeding a post stays under the
// per-route rate limit.
const reactionPace = 300 * time.Millisecond

// maxMessagesPerPage is the most messages one history request returns.
const maxMessagesPerPage = 100

var _ output.Gateway = (*Gateway)(nil)

// session is the part of *discordgo.Session the gateway uses.
type session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
}

// Gateway implements output.Gateway on a Discord session scoped to one
// guild. Every error it returns wraps domain.ErrGateway.
type Gateway struct {
	session   session
	state     *discordgo.State
	guildID   string
	inbox     *Inbox
	reactions *rate.Limiter

	mu         sync.RWMutex
	selfID     string
	dmChannels map[string]string
}

// NewGateway wraps s. state may be nil, in which case display names are
// always fetched from the API.
func NewGateway(s session, state *discordgo.State, guildID string, inbox *Inbox) *Gateway {
	return &Gateway{
		session:    s,
		state:      state,
		guildID:    guildID,
		inbox:      inbox,
		reactions:  rate.NewLimiter(rate.Every(reactionPace), 1),
		dmChannels: make(map[string]string),
	}
}

// SetSelfID records the bot's own user id once the session is ready.
func (g *Gateway) SetSelfID(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selfID = id
}

func (g *Gateway) SelfID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selfID
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrGateway, op, err)
}

func (g *Gateway) SendDirectMessage(ctx context.Context, userID, content string) error {
	channelID, err := g.dmChannel(ctx, userID)
	if err != nil {
		return wrap("open dm with "+userID, err)
	}
	if _, err := g.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return wrap("send dm to "+userID, err)
	}
	return nil
}

func (g *Gateway) dmChannel(ctx context.Context, userID string) (string, error) {
	g.mu.RLock()
	id, ok := g.dmChannels[userID]
	g.mu.RUnlock()
	if ok {
		return id, nil
	}
	ch, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.dmChannels[userID] = ch.ID
	g.mu.Unlock()
	return ch.ID, nil
}

func (g *Gateway) SendChannelMessage(ctx context.Context, channelID, content string) (string, error) {
	m, err := g.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrap("send to "+channelID, err)
	}
	return m.ID, nil
}

func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	if _, err := g.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx)); err != nil {
		return wrap("edit "+messageID, err)
	}
	return nil
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return wrap("delete "+messageID, err)
	}
	return nil
}

func (g *Gateway) AddReaction(ctx context.Context, channelID, messageID, glyph string) error {
	if err := g.reactions.Wait(ctx); err != nil {
		return wrap("react on "+messageID, err)
	}
	if err := g.session.MessageReactionAdd(channelID, messageID, glyph, discordgo.WithContext(ctx)); err != nil {
		return wrap("react on "+messageID, err)
	}
	return nil
}

func (g *Gateway) RemoveReaction(ctx context.Context, channelID, messageID, glyph, userID string) error {
	if err := g.session.MessageReactionRemove(channelID, messageID, glyph, userID, discordgo.WithContext(ctx)); err != nil {
		return wrap("remove reaction on "+messageID, err)
	}
	return nil
}

// cachedMember prefers the session state. The bot does not receive member
// updates, so cached roles may be stale; only names are read this way.
func (g *Gateway) cachedMember(ctx context.Context, userID string) (*discordgo.Member, error) {
	if g.state != nil {
		if m, err := g.state.Member(g.guildID, userID); err == nil {
			return m, nil
		}
	}
	return g.member(ctx, userID)
}

// member fetches the member from the API.
func (g *Gateway) member(ctx context.Context, userID string) (*discordgo.Member, error) {
	m, err := g.session.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("member "+userID, err)
	}
	return m, nil
}

func (g *Gateway) MemberRoles(ctx context.Context, userID string) ([]string, error) {
	m, err := g.member(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.Roles, nil
}

// MemberDisplayName returns the guild nickname, then the global name,
// then the username.
func (g *Gateway) MemberDisplayName(ctx context.Context, userID string) (string, error) {
	m, err := g.cachedMember(ctx, userID)
	if err != nil {
		return "", err
	}
	name := resolveDisplayName(m)
	if name == "" {
		return "", wrap("member "+userID, errors.New("no name"))
	}
	return name, nil
}

func (g *Gateway) WaitForDirectMessage(ctx context.Context, userID string, timeout time.Duration) (string, error) {
	return g.inbox.Wait(ctx, userID, timeout)
}

func (g *Gateway) RecentOwnMessages(ctx context.Context, channelID string, limit int) ([]string, error) {
	self := g.SelfID()
	if self == "" {
		return nil, wrap("history of "+channelID, errors.New("session not ready"))
	}
	if limit <= 0 || limit > maxMessagesPerPage {
		limit = maxMessagesPerPage
	}
	msgs, err := g.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("history of "+channelID, err)
	}
	var ids []string
	for _, m := range msgs {
		if m.Author != nil && m.Author.ID == self {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (g *Gateway) MessageLink(channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", g.guildID, channelID, messageID)
}

// GuildRoles lists the guild's roles in API order.
func (g *Gateway) GuildRoles(ctx context.Context) ([]*discordgo.Role, error) {
	roles, err := g.session.GuildRoles(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("roles of "+g.guildID, err)
	}
	return roles, nil
}

// IsAdministrator reports whether one of the user's roles grants the
// administrator permission.
func (g *Gateway) IsAdministrator(ctx context.Context, userID string) (bool, error) {
	m, err := g.member(ctx, userID)
	if err != nil {
		return false, err
	}
	roles, err := g.GuildRoles(ctx)
	if err != nil {
		return false, err
	}
	held := make(map[string]bool, len(m.Roles))
	for _, id := range m.Roles {
		held[id] = true
	}
	for _, r := range roles {
		if held[r.ID] && r.Permissions&discordgo.PermissionAdministrator != 0 {
			return true, nil
		}
	}
	return false, nil
}
