package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/input"
	"opboard/internal/ports/output"
	"opboard/pkg/eventtime"
)

var _ input.EventUseCase = (*EventService)(nil)

// RenderCanceller drops a queued re-render.
type RenderCanceller interface {
	Cancel(eventID uint)
}

// EventConfig holds the lifecycle settings taken from configuration.
type EventConfig struct {
	BoardChannelID  string
	StaffRoleID     string
	Locale          string
	CommandPrefix   string
	Location        *time.Location
	DialogueTimeout time.Duration
}

// EventService runs the create, edit and delete workflows. Every workflow
// is a direct-message dialogue with the initiator; a user runs at most one
// dialogue at a time.
type EventService struct {
	events     output.EventRepository
	signups    output.SignupRepository
	gateway    output.Gateway
	board      *Board
	renders    RenderCanceller
	translator output.T
	clock      clockwork.Clock
	cfg        EventConfig
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]string
}

func NewEventService(
	events output.EventRepository,
	signups output.SignupRepository,
	gateway output.Gateway,
	board *Board,
	renders RenderCanceller,
	translator output.T,
	c clockwork.Clock,
	cfg EventConfig,
	logger *slog.Logger,
) *EventService {
	if cfg.DialogueTimeout <= 0 {
		cfg.DialogueTimeout = DefaultDialogueTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &EventService{
		events:     events,
		signups:    signups,
		gateway:    gateway,
		board:      board,
		renders:    renders,
		translator: translator,
		clock:      c,
		cfg:        cfg,
		logger:     logger,
		sessions:   make(map[string]string),
	}
}

// CreateEvent runs the creation dialogue, posts the event to the board
// channel, stores it and seeds the post with every role glyph.
func (s *EventService) CreateEvent(ctx context.Context, initiatorID string) error {
	if !s.isStaff(ctx, initiatorID) {
		return fmt.Errorf("create event: %w", domain.ErrPermissionDenied)
	}
	sessionID, release, err := s.acquire(initiatorID)
	if err != nil {
		s.tell(ctx, initiatorID, "errors."+errorCode(err), nil)
		return fmt.Errorf("create event: %w", err)
	}
	defer release()
	logger := s.logger.With("session_id", sessionID, "user_id", initiatorID)
	conv := s.conversation(initiatorID)

	d := newCreateDialogue(s.parseTime, s.cfg.CommandPrefix)
	if err := s.converse(ctx, conv, d, logger); err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	event := &entities.Event{
		ChannelID:   s.cfg.BoardChannelID,
		CreatorID:   initiatorID,
		Title:       d.title,
		Description: d.description,
		EventTime:   d.eventTime,
		CreatedAt:   s.clock.Now().UTC(),
	}
	text := s.board.Render(ctx, event, nil)
	messageID, err := s.gateway.SendChannelMessage(ctx, s.cfg.BoardChannelID, text)
	if err != nil {
		s.notify(ctx, conv, message{key: "create.post_failed"}, logger)
		return fmt.Errorf("create event: post: %w", err)
	}
	event.MessageID = messageID

	if err := s.events.Create(ctx, event); err != nil {
		// The post stays up; the startup scan removes it.
		logger.Error("event posted but not stored",
			"message_id", messageID, "channel_id", s.cfg.BoardChannelID, "error", err)
		s.notify(ctx, conv, message{key: "create.persist_failed"}, logger)
		return fmt.Errorf("create event: store: %w", err)
	}

	if failed := s.board.Seed(ctx, event.ChannelID, event.MessageID); failed > 0 {
		logger.Warn("some role reactions could not be seeded", "event_id", event.ID, "failed", failed)
	}

	s.notify(ctx, conv, message{key: "create.completed", data: map[string]any{
		"ID":    event.ID,
		"Title": event.Title,
		"Link":  s.gateway.MessageLink(event.ChannelID, event.MessageID),
	}}, logger)
	logger.Info("event created", "event_id", event.ID, "message_id", event.MessageID, "title", event.Title)
	return nil
}

// EditEvent changes one field of an active event and re-renders its post
// immediately.
func (s *EventService) EditEvent(ctx context.Context, eventID uint, initiatorID string) error {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		s.tell(ctx, initiatorID, "errors."+errorCode(err), map[string]any{"ID": eventID})
		return fmt.Errorf("edit event %d: %w", eventID, err)
	}
	if !s.canManage(ctx, event, initiatorID) {
		return fmt.Errorf("edit event %d: %w", eventID, domain.ErrPermissionDenied)
	}
	sessionID, release, err := s.acquire(initiatorID)
	if err != nil {
		s.tell(ctx, initiatorID, "errors."+errorCode(err), nil)
		return fmt.Errorf("edit event %d: %w", eventID, err)
	}
	defer release()
	logger := s.logger.With("session_id", sessionID, "user_id", initiatorID, "event_id", eventID)
	conv := s.conversation(initiatorID)

	d := newEditDialogue(event, s.parseTime)
	if err := s.converse(ctx, conv, d, logger); err != nil {
		return fmt.Errorf("edit event %d: %w", eventID, err)
	}

	if err := s.events.UpdateFields(ctx, eventID, d.update); err != nil {
		s.notify(ctx, conv, message{key: "errors." + errorCode(err), data: map[string]any{"ID": eventID}}, logger)
		return fmt.Errorf("edit event %d: %w", eventID, err)
	}
	if err := s.board.Rerender(ctx, eventID); err != nil {
		logger.Warn("edited event not re-rendered", "error", err)
	}

	s.notify(ctx, conv, message{key: "edit.completed", data: map[string]any{"ID": eventID}}, logger)
	logger.Info("event edited", "field", string(d.field))
	return nil
}

// DeleteEvent retires an active event after an explicit confirmation. The
// post is removed best-effort and the roster is dropped.
func (s *EventService) DeleteEvent(ctx context.Context, eventID uint, initiatorID string) error {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		s.tell(ctx, initiatorID, "errors."+errorCode(err), map[string]any{"ID": eventID})
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	if !s.canManage(ctx, event, initiatorID) {
		return fmt.Errorf("delete event %d: %w", eventID, domain.ErrPermissionDenied)
	}
	sessionID, release, err := s.acquire(initiatorID)
	if err != nil {
		s.tell(ctx, initiatorID, "errors."+errorCode(err), nil)
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	defer release()
	logger := s.logger.With("session_id", sessionID, "user_id", initiatorID, "event_id", eventID)
	conv := s.conversation(initiatorID)

	if err := s.converse(ctx, conv, &deleteDialogue{event: event}, logger); err != nil {
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}

	if err := s.retire(ctx, event); err != nil {
		s.notify(ctx, conv, message{key: "errors.generic"}, logger)
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	s.notify(ctx, conv, message{key: "delete.completed", data: map[string]any{"ID": eventID}}, logger)
	logger.Info("event deleted")
	return nil
}

// retire removes the post, drops the roster and marks the event expired.
// Shared by deletion and the cleanup sweep.
func (s *EventService) retire(ctx context.Context, event *entities.Event) error {
	return retireEvent(ctx, s.events, s.signups, s.gateway, s.renders, event, s.logger)
}

func retireEvent(
	ctx context.Context,
	events output.EventRepository,
	signups output.SignupRepository,
	gateway output.Gateway,
	renders RenderCanceller,
	event *entities.Event,
	logger *slog.Logger,
) error {
	if err := gateway.DeleteMessage(ctx, event.ChannelID, event.MessageID); err != nil {
		logger.Warn("event post not deleted",
			"event_id", event.ID, "message_id", event.MessageID, "error", err)
	}
	renders.Cancel(event.ID)
	if _, err := signups.DeleteByEventID(ctx, event.ID); err != nil {
		return fmt.Errorf("retire event %d: drop signups: %w", event.ID, err)
	}
	if err := events.MarkExpired(ctx, event.ID); err != nil {
		return fmt.Errorf("retire event %d: %w", event.ID, err)
	}
	return nil
}

// converse runs d and tells the user how it ended when it did not
// complete.
func (s *EventService) converse(ctx context.Context, conv *conversation, d dialogue, logger *slog.Logger) error {
	err := conv.run(ctx, d)
	outcome := OutcomeOf(err)
	logger.Debug("dialogue finished", "dialogue", d.kind(), "outcome", outcome.String())

	switch outcome {
	case OutcomeCompleted:
		return nil
	case OutcomeCancelled:
		s.notify(ctx, conv, message{key: d.kind() + ".cancelled"}, logger)
	case OutcomeTimedOut:
		s.notify(ctx, conv, message{key: d.kind() + ".timed_out", data: map[string]any{"Prefix": s.cfg.CommandPrefix}}, logger)
	case OutcomeAborted:
		// The dialogue already explained why.
	default:
		logger.Error("dialogue failed", "dialogue", d.kind(), "error", err)
		if !errors.Is(err, domain.ErrGateway) {
			s.notify(ctx, conv, message{key: "errors.generic"}, logger)
		}
	}
	return err
}

func (s *EventService) notify(ctx context.Context, conv *conversation, m message, logger *slog.Logger) {
	if err := conv.say(ctx, m); err != nil {
		logger.Warn("direct message not delivered", "key", m.key, "error", err)
	}
}

// tell sends a single message outside any dialogue.
func (s *EventService) tell(ctx context.Context, userID, key string, data map[string]any) {
	s.notify(ctx, s.conversation(userID), message{key: key, data: data}, s.logger.With("user_id", userID))
}

func (s *EventService) conversation(userID string) *conversation {
	return &conversation{
		gateway:    s.gateway,
		translator: s.translator,
		locale:     s.cfg.Locale,
		userID:     userID,
		timeout:    s.cfg.DialogueTimeout,
	}
}

func (s *EventService) parseTime(raw string) (time.Time, error) {
	return eventtime.Parse(raw, s.cfg.Location, s.clock.Now())
}

// acquire reserves the user's dialogue slot and returns a session id for
// logging plus the release func.
func (s *EventService) acquire(userID string) (string, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.sessions[userID]; busy {
		return "", nil, domain.ErrDialogueInProgress
	}
	sessionID := uuid.NewString()
	s.sessions[userID] = sessionID
	return sessionID, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sessions[userID] == sessionID {
			delete(s.sessions, userID)
		}
	}, nil
}

// ActiveDialogues returns the number of users currently in a dialogue.
func (s *EventService) ActiveDialogues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// isStaff reports whether userID holds the staff role. A failed lookup
// counts as not staff.
func (s *EventService) isStaff(ctx context.Context, userID string) bool {
	if s.cfg.StaffRoleID == "" {
		return false
	}
	roles, err := s.gateway.MemberRoles(ctx, userID)
	if err != nil {
		s.logger.Warn("member role lookup failed", "user_id", userID, "error", err)
		return false
	}
	return slices.Contains(roles, s.cfg.StaffRoleID)
}

func (s *EventService) canManage(ctx context.Context, event *entities.Event, userID string) bool {
	return event.CreatorID == userID || s.isStaff(ctx, userID)
}

func errorCode(err error) string {
	if code := domain.Code(err); code != "" {
		return code
	}
	return "generic"
}
