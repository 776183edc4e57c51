package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"opboard/internal/domain/entities"
)

// HandleReaction queues a reaction add or remove on a board post. The
// bot's own reactions and gateway redeliveries are dropped here.
func (h *Handler) HandleReaction(added bool, r entities.Reaction) {
	if r.ChannelID != h.cfg.BoardChannelID || r.UserID == "" || r.UserID == h.platform.SelfID() {
		return
	}
	kind := "remove:"
	if added {
		kind = "add:"
	}
	if h.dedup.IsDuplicate(kind + r.Key()) {
		h.logger.Debug("duplicate reaction dropped", "kind", kind, "message_id", r.MessageID, "user_id", r.UserID)
		return
	}
	select {
	case h.jobs <- reactionJob{added: added, reaction: r}:
	default:
		h.logger.Warn("reaction queue full, dropping", "message_id", r.MessageID, "user_id", r.UserID)
	}
}

func (h *Handler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-h.jobs:
			h.reconcile(ctx, job)
		}
	}
}

func (h *Handler) reconcile(ctx context.Context, job reactionJob) {
	defer guard(h.logger, "reaction", "message_id", job.reaction.MessageID, "user_id", job.reaction.UserID)

	var err error
	if job.added {
		err = h.signupUseCase.HandleReactionAdd(ctx, job.reaction)
	} else {
		err = h.signupUseCase.HandleReactionRemove(ctx, job.reaction)
	}
	if err != nil {
		h.logger.Error("reaction not reconciled",
			"added", job.added, "message_id", job.reaction.MessageID,
			"user_id", job.reaction.UserID, "glyph", job.reaction.Glyph, "error", err)
	}
}

// toReaction uses the emoji's API name so custom emoji can be removed
// again with the same glyph.
func toReaction(r *discordgo.MessageReaction) entities.Reaction {
	return entities.Reaction{
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Glyph:     r.Emoji.APIName(),
	}
}
