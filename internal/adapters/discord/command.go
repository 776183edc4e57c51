package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"opboard/internal/domain"
)

// Command names, typed after the configured prefix.
const (
	cmdCreate = "event"
	cmdEdit   = "edit"
	cmdDelete = "delete"
	cmdRoles  = "roles"
)

// parseCommand splits "<prefix><name> args..." into a lowercased name and
// its arguments.
func parseCommand(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (h *Handler) dispatch(m *discordgo.Message) {
	name, args, ok := parseCommand(h.cfg.CommandPrefix, m.Content)
	if !ok {
		return
	}
	userID := m.Author.ID
	switch name {
	case cmdCreate:
		h.spawn(name, userID, func(ctx context.Context) error {
			return h.eventUseCase.CreateEvent(ctx, userID)
		})
	case cmdEdit:
		if id, ok := h.eventID(userID, name, args); ok {
			h.spawn(name, userID, func(ctx context.Context) error {
				return h.eventUseCase.EditEvent(ctx, id, userID)
			})
		}
	case cmdDelete:
		if id, ok := h.eventID(userID, name, args); ok {
			h.spawn(name, userID, func(ctx context.Context) error {
				return h.eventUseCase.DeleteEvent(ctx, id, userID)
			})
		}
	case cmdRoles:
		h.listRoles(m)
	}
}

// eventID reads the event id argument, explaining the usage to the user
// when it is missing or malformed.
func (h *Handler) eventID(userID, command string, args []string) (uint, bool) {
	if len(args) == 0 {
		h.tell(h.ctx, userID, "command."+command+"_usage", map[string]any{"Prefix": h.cfg.CommandPrefix})
		return 0, false
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || id == 0 {
		h.tell(h.ctx, userID, "command.invalid_id", map[string]any{"Value": args[0]})
		return 0, false
	}
	return uint(id), true
}

// spawn runs a dialogue command on its own goroutine. The use case has
// already told the user how it ended; only the log remains.
func (h *Handler) spawn(command, userID string, fn func(ctx context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer guard(h.logger, command, "user_id", userID)
		logCommand(h.logger, command, userID, fn(h.ctx))
	}()
}

func logCommand(logger *slog.Logger, command, userID string, err error) {
	logger = logger.With("command", command, "user_id", userID)
	switch {
	case err == nil:
		logger.Debug("command completed")
	case errors.Is(err, domain.ErrPermissionDenied):
		logger.Info("command refused", "error", err)
	case errors.Is(err, domain.ErrDialogueCancelled),
		errors.Is(err, domain.ErrDialogueTimeout),
		errors.Is(err, domain.ErrDialogueAborted),
		errors.Is(err, domain.ErrDialogueInProgress),
		errors.Is(err, domain.ErrEventNotFound):
		logger.Info("command ended early", "reason", domain.Code(err))
	case errors.Is(err, context.Canceled):
		logger.Debug("command interrupted by shutdown")
	default:
		logger.Error("command failed", "error", err)
	}
}

// listRoles replies with every guild role and its id, highest first.
// Members without the administrator permission are ignored.
func (h *Handler) listRoles(m *discordgo.Message) {
	ctx := h.ctx
	admin, err := h.platform.IsAdministrator(ctx, m.Author.ID)
	if err != nil {
		h.logger.Error("administrator check failed", "user_id", m.Author.ID, "error", err)
		return
	}
	if !admin {
		h.logger.Debug("roles listing ignored for non-administrator", "user_id", m.Author.ID)
		return
	}
	roles, err := h.platform.GuildRoles(ctx)
	if err != nil {
		h.logger.Error("guild roles not listed", "error", err)
		return
	}
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Position > roles[j].Position })

	lines := make([]string, 0, len(roles))
	for _, r := range roles {
		lines = append(lines, fmt.Sprintf("%-40s %s", r.Name, r.ID))
	}
	header := h.translator.T(h.cfg.Locale, "command.roles_header", nil)
	for _, chunk := range codeBlockChunks(header, lines, chunkBudget) {
		if _, err := h.platform.SendChannelMessage(ctx, m.ChannelID, chunk); err != nil {
			h.logger.Error("roles listing not sent", "channel_id", m.ChannelID, "error", err)
			return
		}
	}
	h.logger.Info("roles listed", "user_id", m.Author.ID, "count", len(roles))
}
