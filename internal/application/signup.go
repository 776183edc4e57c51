package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/input"
	"opboard/internal/ports/output"
)

var _ input.SignupUseCase = (*SignupService)(nil)

// RenderScheduler queues a re-render of an event's post.
type RenderScheduler interface {
	Schedule(eventID uint)
}

// SignupService reconciles reactions on board posts with the signup
// table. Its only state besides the store is the pending-removal set.
type SignupService struct {
	events      output.EventRepository
	signups     output.SignupRepository
	gateway     output.Gateway
	roles       *entities.RoleConfig
	staffRoleID string
	pending     *PendingRemovals
	renders     RenderScheduler
	logger      *slog.Logger
}

func NewSignupService(
	events output.EventRepository,
	signups output.SignupRepository,
	gateway output.Gateway,
	roles *entities.RoleConfig,
	staffRoleID string,
	pending *PendingRemovals,
	renders RenderScheduler,
	logger *slog.Logger,
) *SignupService {
	return &SignupService{
		events:      events,
		signups:     signups,
		gateway:     gateway,
		roles:       roles,
		staffRoleID: staffRoleID,
		pending:     pending,
		renders:     renders,
		logger:      logger,
	}
}

// HandleReactionAdd signs the user up under the glyph's role, replacing
// any previous choice. Foreign glyphs, staff reactions and ineligible
// members have their reaction removed.
func (s *SignupService) HandleReactionAdd(ctx context.Context, r entities.Reaction) error {
	event, err := s.events.FindByMessageID(ctx, r.MessageID)
	if errors.Is(err, domain.ErrEventNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reaction add: %w", err)
	}
	logger := s.logger.With("event_id", event.ID, "user_id", r.UserID, "glyph", r.Glyph)

	roleKey, ok := s.roles.GlyphToRoleKey(r.Glyph)
	if !ok {
		logger.Debug("foreign reaction removed")
		s.removeReaction(ctx, r)
		return nil
	}

	memberRoles, err := s.gateway.MemberRoles(ctx, r.UserID)
	if err != nil {
		// Treated as holding no roles: not staff, and only open
		// categories remain available.
		logger.Warn("member role lookup failed", "error", err)
		memberRoles = nil
	}
	if s.isStaff(memberRoles) {
		logger.Debug("staff reaction removed")
		s.removeReaction(ctx, r)
		return nil
	}
	if roleKey != entities.DeclinedRoleKey && !s.roles.Eligible(roleKey, memberRoles) {
		logger.Debug("ineligible reaction removed", "role_key", roleKey)
		s.removeReaction(ctx, r)
		return nil
	}

	existing, err := s.signups.Find(ctx, event.ID, r.UserID)
	if err != nil && !errors.Is(err, domain.ErrSignupNotFound) {
		return fmt.Errorf("reaction add: %w", err)
	}
	if existing != nil && existing.RoleKey != roleKey {
		if oldGlyph, ok := s.roles.RoleKeyToGlyph(existing.RoleKey); ok {
			s.removeReaction(ctx, entities.Reaction{
				ChannelID: r.ChannelID,
				MessageID: r.MessageID,
				UserID:    r.UserID,
				Glyph:     oldGlyph,
			})
		}
	}

	signup := &entities.Signup{
		EventID:     event.ID,
		UserID:      r.UserID,
		DisplayName: s.displayName(ctx, r.UserID),
		RoleKey:     roleKey,
	}
	if err := s.signups.Upsert(ctx, signup); err != nil {
		return fmt.Errorf("reaction add: %w", err)
	}
	logger.Info("signup recorded", "role_key", roleKey)
	s.renders.Schedule(event.ID)
	return nil
}

// HandleReactionRemove drops the user's signup when the removed glyph is
// their current choice. Removals the engine issued itself are consumed
// and ignored.
func (s *SignupService) HandleReactionRemove(ctx context.Context, r entities.Reaction) error {
	if s.pending.Consume(r) {
		return nil
	}

	event, err := s.events.FindByMessageID(ctx, r.MessageID)
	if errors.Is(err, domain.ErrEventNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reaction remove: %w", err)
	}
	roleKey, ok := s.roles.GlyphToRoleKey(r.Glyph)
	if !ok {
		return nil
	}

	existing, err := s.signups.Find(ctx, event.ID, r.UserID)
	if errors.Is(err, domain.ErrSignupNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reaction remove: %w", err)
	}
	if existing.RoleKey != roleKey {
		return nil
	}
	if _, err := s.signups.Remove(ctx, event.ID, r.UserID); err != nil {
		return fmt.Errorf("reaction remove: %w", err)
	}
	s.logger.Info("signup withdrawn", "event_id", event.ID, "user_id", r.UserID, "role_key", roleKey)
	s.renders.Schedule(event.ID)
	return nil
}

// removeReaction registers r as self-inflicted before asking the gateway
// to remove it, and forgets it again if the gateway refuses.
func (s *SignupService) removeReaction(ctx context.Context, r entities.Reaction) {
	s.pending.Add(r)
	if err := s.gateway.RemoveReaction(ctx, r.ChannelID, r.MessageID, r.Glyph, r.UserID); err != nil {
		s.pending.Discard(r)
		s.logger.Warn("reaction removal failed",
			"message_id", r.MessageID, "user_id", r.UserID, "glyph", r.Glyph, "error", err)
	}
}

func (s *SignupService) isStaff(memberRoles []string) bool {
	return s.staffRoleID != "" && slices.Contains(memberRoles, s.staffRoleID)
}

func (s *SignupService) displayName(ctx context.Context, userID string) string {
	name, err := s.gateway.MemberDisplayName(ctx, userID)
	if err != nil || name == "" {
		return userID
	}
	return name
}
