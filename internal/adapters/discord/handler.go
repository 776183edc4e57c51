package discord

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"opboard/internal/application"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/input"
	"opboard/internal/ports/output"
)

// reactionQueueSize bounds reactions waiting for the worker. Overflow is
// dropped; users re-react.
const reactionQueueSize = 512

// guardTimeout bounds the deletion of one stray board message.
const guardTimeout = 10 * time.Second

// Platform is the gateway plus the guild queries only the adapter needs.
type Platform interface {
	output.Gateway
	SelfID() string
	GuildRoles(ctx context.Context) ([]*discordgo.Role, error)
	IsAdministrator(ctx context.Context, userID string) (bool, error)
}

type HandlerConfig struct {
	GuildID        string
	BoardChannelID string
	CommandPrefix  string
	Locale         string
}

type reactionJob struct {
	added    bool
	reaction entities.Reaction
}

// Handler turns gateway events into use case calls. Reactions go through a
// single worker so the signup engine sees them in delivery order; every
// dialogue command runs on its own goroutine.
type Handler struct {
	eventUseCase  input.EventUseCase
	signupUseCase input.SignupUseCase
	platform      Platform
	inbox         *Inbox
	dedup         *application.Deduplicator
	translator    output.T
	cfg           HandlerConfig
	logger        *slog.Logger

	ctx  context.Context
	jobs chan reactionJob
	wg   sync.WaitGroup
}

func NewHandler(
	eventUseCase input.EventUseCase,
	signupUseCase input.SignupUseCase,
	platform Platform,
	inbox *Inbox,
	dedup *application.Deduplicator,
	translator output.T,
	cfg HandlerConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		eventUseCase:  eventUseCase,
		signupUseCase: signupUseCase,
		platform:      platform,
		inbox:         inbox,
		dedup:         dedup,
		translator:    translator,
		cfg:           cfg,
		logger:        logger,
		ctx:           context.Background(),
		jobs:          make(chan reactionJob, reactionQueueSize),
	}
}

// Start binds the handler to ctx and starts the reaction worker. It must
// be called before any event is delivered.
func (h *Handler) Start(ctx context.Context) {
	h.ctx = ctx
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.work(ctx)
	}()
}

// Wait blocks until the worker and every running dialogue have returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// HandleMessage routes a new message: direct messages feed waiting
// dialogues, guild messages are guarded and checked for commands. A
// redelivered message id is dropped.
func (h *Handler) HandleMessage(m *discordgo.Message) {
	if m.Author == nil || m.Author.ID == h.platform.SelfID() {
		return
	}
	if h.dedup.IsDuplicate("message:" + m.ID) {
		h.logger.Debug("duplicate message dropped", "message_id", m.ID, "user_id", m.Author.ID)
		return
	}
	if m.GuildID == "" {
		if !h.inbox.Deliver(m.Author.ID, m.Content) {
			h.logger.Debug("direct message outside a dialogue", "user_id", m.Author.ID)
		}
		return
	}
	if m.GuildID != h.cfg.GuildID {
		return
	}
	if m.ChannelID == h.cfg.BoardChannelID {
		h.guardBoard(m)
	}
	if !m.Author.Bot {
		h.dispatch(m)
	}
}

// guardBoard keeps the board channel a clean feed of event posts by
// deleting anything the bot did not post. Commands in it still run.
func (h *Handler) guardBoard(m *discordgo.Message) {
	ctx, cancel := context.WithTimeout(h.ctx, guardTimeout)
	defer cancel()
	if err := h.platform.DeleteMessage(ctx, m.ChannelID, m.ID); err != nil {
		h.logger.Warn("board message not removed", "message_id", m.ID, "author_id", m.Author.ID, "error", err)
		return
	}
	h.logger.Debug("board message removed", "message_id", m.ID, "author_id", m.Author.ID)
}

// tell sends a one-off direct message, logging delivery failures.
func (h *Handler) tell(ctx context.Context, userID, key string, data map[string]any) {
	text := h.translator.T(h.cfg.Locale, key, data)
	if err := h.platform.SendDirectMessage(ctx, userID, text); err != nil {
		h.logger.Warn("direct message not delivered", "user_id", userID, "key", key, "error", err)
	}
}
