package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"
)

// Intents the bot subscribes to. Message content is needed to read
// commands posted in the guild.
const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// NewSession creates an unopened Discord session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = intents
	return s, nil
}

// Bot is the Discord adapter: it owns the session and feeds its events to
// the handler.
type Bot struct {
	session *discordgo.Session
	gateway *Gateway
	handler *Handler
	orphans OrphanScanner
	sweeper Sweeper
	logger  *slog.Logger
}

func NewBot(
	session *discordgo.Session,
	gateway *Gateway,
	handler *Handler,
	orphans OrphanScanner,
	sweeper Sweeper,
	logger *slog.Logger,
) *Bot {
	b := &Bot{
		session: session,
		gateway: gateway,
		handler: handler,
		orphans: orphans,
		sweeper: sweeper,
		logger:  logger,
	}
	b.setupHandlers()
	return b
}

func (b *Bot) setupHandlers() {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	b.gateway.SetSelfID(r.User.ID)
	b.logger.Info("connected", "user", r.User.Username, "user_id", r.User.ID)
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	defer guard(b.logger, "message", "message_id", m.ID)
	b.handler.HandleMessage(m.Message)
}

func (b *Bot) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	b.handler.HandleReaction(true, toReaction(r.MessageReaction))
}

func (b *Bot) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	b.handler.HandleReaction(false, toReaction(r.MessageReaction))
}

// Run opens the session, runs the background tasks and blocks until ctx
// ends. Running dialogues are interrupted and waited for before it
// returns.
func (b *Bot) Run(ctx context.Context) error {
	b.handler.Start(ctx)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if b.session.State != nil && b.session.State.User != nil {
		b.gateway.SetSelfID(b.session.State.User.ID)
	}
	b.logger.Info("bot online")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.runScheduledTasks(gctx) })

	<-gctx.Done()
	b.logger.Info("shutting down")
	if err := b.session.Close(); err != nil {
		b.logger.Warn("closing discord session", "error", err)
	}
	b.handler.Wait()
	return g.Wait()
}
