package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
)

// Sweep defaults.
const (
	DefaultReminderInterval = 60 * time.Second
	DefaultReminderLead     = 15 * time.Minute
	DefaultCleanupInterval  = 15 * time.Minute
	DefaultCleanupGrace     = 24 * time.Hour
)

type SchedulerConfig struct {
	ReminderInterval time.Duration
	ReminderLead     time.Duration
	CleanupInterval  time.Duration
	CleanupGrace     time.Duration
	Locale           string
}

func (c *SchedulerConfig) applyDefaults() {
	if c.ReminderInterval <= 0 {
		c.ReminderInterval = DefaultReminderInterval
	}
	if c.ReminderLead <= 0 {
		c.ReminderLead = DefaultReminderLead
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.CleanupGrace <= 0 {
		c.CleanupGrace = DefaultCleanupGrace
	}
}

// Scheduler runs the reminder and cleanup sweeps. Each sweep handles its
// events one by one; a failure on one event is logged and the sweep moves
// on.
type Scheduler struct {
	events     output.EventRepository
	signups    output.SignupRepository
	gateway    output.Gateway
	renders    RenderCanceller
	translator output.T
	clock      clockwork.Clock
	cfg        SchedulerConfig
	logger     *slog.Logger
}

func NewScheduler(
	events output.EventRepository,
	signups output.SignupRepository,
	gateway output.Gateway,
	renders RenderCanceller,
	translator output.T,
	c clockwork.Clock,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		events:     events,
		signups:    signups,
		gateway:    gateway,
		renders:    renders,
		translator: translator,
		clock:      c,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run sweeps once immediately, then on every interval, until ctx ends. A
// sweep in progress when ctx ends runs to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(ctx, "reminder", s.cfg.ReminderInterval, s.ReminderSweep)
	})
	g.Go(func() error {
		return s.loop(ctx, "cleanup", s.cfg.CleanupInterval, s.CleanupSweep)
	})
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) int) error {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("sweep started", "sweep", name, "interval", interval)

	sweepCtx := context.WithoutCancel(ctx)
	for {
		if n := sweep(sweepCtx); n > 0 {
			s.logger.Info("sweep processed events", "sweep", name, "events", n)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("sweep stopped", "sweep", name)
			return nil
		case <-ticker.Chan():
		}
	}
}

// ReminderSweep direct-messages the non-declined roster of every event
// starting within the lead window and flags the event so it is reminded
// once. It returns the number of events flagged.
func (s *Scheduler) ReminderSweep(ctx context.Context) int {
	now := s.clock.Now()
	events, err := s.events.FindNeedingReminder(ctx, now, s.cfg.ReminderLead)
	if err != nil {
		s.logger.Error("reminder sweep: list events", "error", err)
		return 0
	}
	done := 0
	for i := range events {
		event := &events[i]
		if err := s.guard(event, func() error { return s.remind(ctx, event, now) }); err != nil {
			s.logger.Warn("reminder sweep: event skipped", "event_id", event.ID, "error", err)
			continue
		}
		done++
	}
	return done
}

func (s *Scheduler) remind(ctx context.Context, event *entities.Event, now time.Time) error {
	signups, err := s.signups.FindNonDeclined(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("list signups: %w", err)
	}
	minutes := int(math.Ceil(event.EventTime.Sub(now).Minutes()))
	text := s.translator.T(s.cfg.Locale, "reminder.message", map[string]any{
		"Title":   event.Title,
		"Minutes": minutes,
	})
	failed := 0
	for _, signup := range signups {
		if err := s.gateway.SendDirectMessage(ctx, signup.UserID, text); err != nil {
			failed++
			s.logger.Warn("reminder not delivered",
				"event_id", event.ID, "user_id", signup.UserID, "error", err)
		}
	}
	if err := s.events.MarkReminderSent(ctx, event.ID); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	s.logger.Info("reminders sent", "event_id", event.ID, "recipients", len(signups)-failed, "failed", failed)
	return nil
}

// CleanupSweep retires every active event older than the grace window. It
// returns the number of events retired.
func (s *Scheduler) CleanupSweep(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.cfg.CleanupGrace)
	events, err := s.events.FindExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error("cleanup sweep: list events", "error", err)
		return 0
	}
	done := 0
	for i := range events {
		event := &events[i]
		err := s.guard(event, func() error {
			return retireEvent(ctx, s.events, s.signups, s.gateway, s.renders, event, s.logger)
		})
		if err != nil {
			s.logger.Warn("cleanup sweep: event skipped", "event_id", event.ID, "error", err)
			continue
		}
		s.logger.Info("event retired", "event_id", event.ID, "event_time", event.EventTime)
		done++
	}
	return done
}

// guard runs fn and turns a panic into an error so one bad event cannot
// stop the sweep.
func (s *Scheduler) guard(event *entities.Event, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic on event %d: %v", event.ID, r)
		}
	}()
	return fn()
}
