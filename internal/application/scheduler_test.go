package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"opboard/internal/domain/entities"
)

func TestReminderSweepWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	soon := h.seedEvent(t, "soon", testEpoch.Add(10*time.Minute))
	later := h.seedEvent(t, "later", testEpoch.Add(20*time.Minute))
	for _, id := range []uint{soon.ID, later.ID} {
		h.signups.Upsert(ctx, &entities.Signup{EventID: id, UserID: "u1", RoleKey: "infantry"})
	}
	h.signups.Upsert(ctx, &entities.Signup{EventID: soon.ID, UserID: "u2", RoleKey: entities.DeclinedRoleKey})

	if n := h.scheduler.ReminderSweep(ctx); n != 1 {
		t.Fatalf("first sweep reminded %d events, want 1", n)
	}
	if n := h.scheduler.ReminderSweep(ctx); n != 0 {
		t.Fatalf("second sweep reminded %d events, want 0", n)
	}

	dms := h.gateway.directMessages("u1")
	if len(dms) != 1 || dms[0] != "reminder.message map[Minutes:10 Title:Operation soon]" {
		t.Fatalf("u1 DMs = %q", dms)
	}
	if len(h.gateway.directMessages("u2")) != 0 {
		t.Error("declined signup was reminded")
	}
	if !h.events.get(t, soon.ID).ReminderSent {
		t.Error("reminder flag not set")
	}
	if h.events.get(t, later.ID).ReminderSent {
		t.Error("event outside the lead window was flagged")
	}
}

func TestReminderSweepFlagsDespiteDMFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := h.seedEvent(t, "m1", testEpoch.Add(5*time.Minute))
	h.signups.Upsert(ctx, &entities.Signup{EventID: event.ID, UserID: "closed", RoleKey: "medic"})
	h.signups.Upsert(ctx, &entities.Signup{EventID: event.ID, UserID: "open", RoleKey: "medic"})
	h.gateway.dmErr["closed"] = errors.New("cannot send messages to this user")

	h.scheduler.ReminderSweep(ctx)
	h.scheduler.ReminderSweep(ctx)

	if !h.events.get(t, event.ID).ReminderSent {
		t.Fatal("reminder flag not set after a failed DM")
	}
	if got := len(h.gateway.directMessages("open")); got != 1 {
		t.Errorf("open user received %d reminders, want 1", got)
	}
}

func TestCleanupSweepGrace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	old := h.seedEvent(t, "old", testEpoch.Add(-25*time.Hour))
	recent := h.seedEvent(t, "recent", testEpoch.Add(-23*time.Hour))
	h.signups.Upsert(ctx, &entities.Signup{EventID: old.ID, UserID: "u1", RoleKey: "infantry"})

	if n := h.scheduler.CleanupSweep(ctx); n != 1 {
		t.Fatalf("cleanup retired %d events, want 1", n)
	}
	if !h.events.get(t, old.ID).Expired {
		t.Error("25h old event not retired")
	}
	if h.events.get(t, recent.ID).Expired {
		t.Error("23h old event retired")
	}
	if h.signup(t, old.ID, "u1") != nil {
		t.Error("signups of retired event kept")
	}
	if len(h.gateway.deleted) != 1 || h.gateway.deleted[0] != "old" {
		t.Errorf("deleted = %v, want [old]", h.gateway.deleted)
	}
	if n := h.scheduler.CleanupSweep(ctx); n != 0 {
		t.Errorf("second cleanup retired %d events, want 0", n)
	}
}

func TestCleanupSweepToleratesGatewayFailure(t *testing.T) {
	h := newHarness(t)
	a := h.seedEvent(t, "a", testEpoch.Add(-48*time.Hour))
	b := h.seedEvent(t, "b", testEpoch.Add(-30*time.Hour))
	h.gateway.deleteErr = errors.New("unknown message")

	if n := h.scheduler.CleanupSweep(context.Background()); n != 2 {
		t.Fatalf("cleanup retired %d events, want 2", n)
	}
	for _, id := range []uint{a.ID, b.ID} {
		if !h.events.get(t, id).Expired {
			t.Errorf("event %d not retired", id)
		}
	}
}

// panicSignups fails on one event to check that a sweep survives it.
type panicSignups struct {
	*memSignups
	eventID uint
}

func (p panicSignups) FindNonDeclined(ctx context.Context, eventID uint) ([]entities.Signup, error) {
	if eventID == p.eventID {
		panic("corrupt row")
	}
	return p.memSignups.FindNonDeclined(ctx, eventID)
}

func TestReminderSweepRecoversPerEvent(t *testing.T) {
	h := newHarness(t)
	bad := h.seedEvent(t, "bad", testEpoch.Add(5*time.Minute))
	good := h.seedEvent(t, "good", testEpoch.Add(6*time.Minute))
	s := NewScheduler(h.events, panicSignups{h.signups, bad.ID}, h.gateway, h.debouncer, keyTranslator{}, h.clock,
		SchedulerConfig{}, discardLogger())

	if n := s.ReminderSweep(context.Background()); n != 1 {
		t.Fatalf("sweep reminded %d events, want 1", n)
	}
	if !h.events.get(t, good.ID).ReminderSent {
		t.Error("event after the failing one was not processed")
	}
}

func TestSchedulerRunStops(t *testing.T) {
	h := newHarness(t)
	event := h.seedEvent(t, "m1", testEpoch.Add(30*time.Minute))
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = h.scheduler.Run(ctx)
	}()

	// Both loops waiting on their tickers.
	blockCtx, cancelBlock := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelBlock()
	if err := h.clock.BlockUntilContext(blockCtx, 2); err != nil {
		t.Fatalf("tickers not started: %v", err)
	}
	if h.events.get(t, event.ID).ReminderSent {
		t.Fatal("event reminded outside the lead window")
	}

	cancel()
	wg.Wait()
	if runErr != nil {
		t.Fatalf("Run = %v, want nil", runErr)
	}
}
