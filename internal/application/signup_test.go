package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"opboard/internal/domain/entities"
)

func TestReactionAddSignsUp(t *testing.T) {
	h := newHarness(t)
	event := h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
	h.gateway.names["u1"] = "Alpha"

	h.react(t, "m1", "u1", "🪖")

	s := h.signup(t, event.ID, "u1")
	if s == nil || s.RoleKey != "infantry" || s.DisplayName != "Alpha" {
		t.Fatalf("signup = %+v, want infantry/Alpha", s)
	}
	if got := h.debouncer.Pending(); got != 1 {
		t.Fatalf("pending renders = %d, want 1", got)
	}
	h.flushRenders()
	if !strings.Contains(h.gateway.lastEdit(), "  Alpha") {
		t.Errorf("re-render does not list Alpha:\n%s", h.gateway.lastEdit())
	}
}

func TestReactionAddIgnoresUntrackedMessage(t *testing.T) {
	h := newHarness(t)
	h.react(t, "unknown", "u1", "🪖")
	if len(h.gateway.removed()) != 0 || h.debouncer.Pending() != 0 {
		t.Fatal("reaction on an untracked message caused side effects")
	}
}

func TestReactionAddRejects(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		glyph  string
		setup  func(h *harness)
	}{
		{name: "foreign_glyph", userID: "u1", glyph: "🍕"},
		{name: "staff", userID: testStaffUser, glyph: "🪖"},
		{name: "staff_declining", userID: testStaffUser, glyph: entities.DefaultDeclinedGlyph},
		{name: "ineligible", userID: "u1", glyph: "✈️"},
		{
			name:   "role_lookup_failed",
			userID: "u1",
			glyph:  "✈️",
			setup: func(h *harness) {
				h.gateway.memberRoles["u1"] = []string{"role-pilot"}
				h.gateway.rolesErr = errors.New("unavailable")
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t)
			event := h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
			if test.setup != nil {
				test.setup(h)
			}

			h.react(t, "m1", test.userID, test.glyph)

			if s := h.signup(t, event.ID, test.userID); s != nil {
				t.Fatalf("signup stored: %+v", s)
			}
			removed := h.gateway.removed()
			if len(removed) != 1 || removed[0].Glyph != test.glyph || removed[0].UserID != test.userID {
				t.Fatalf("removals = %+v, want one %s by %s", removed, test.glyph, test.userID)
			}
			if h.pending.Len() != 1 {
				t.Fatalf("pending removals = %d, want 1", h.pending.Len())
			}

			// The gateway echoes the removal back; it must not count as user action.
			h.unreact(t, removed[0])
			if h.pending.Len() != 0 {
				t.Fatalf("pending removals = %d after echo, want 0", h.pending.Len())
			}
		})
	}
}

func TestReactionAddEligibleRestrictedRole(t *testing.T) {
	h := newHarness(t)
	event := h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
	h.gateway.memberRoles["u1"] = []string{"role-other", "role-pilot"}

	h.react(t, "m1", "u1", "✈️")

	if s := h.signup(t, event.ID, "u1"); s == nil || s.RoleKey != "pilot" {
		t.Fatalf("signup = %+v, want pilot", s)
	}
	if s := h.signup(t, event.ID, "u1"); s.DisplayName != "u1" {
		t.Errorf("display name = %q, want user id fallback", s.DisplayName)
	}
}

func TestReactionAddDeclinedIsOpen(t *testing.T) {
	h := newHarness(t)
	h.gateway.rolesErr = errors.New("unavailable")
	event := h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))

	h.react(t, "m1", "u1", entities.DefaultDeclinedGlyph)

	if s := h.signup(t, event.ID, "u1"); s == nil || !s.Declined() {
		t.Fatalf("signup = %+v, want declined", s)
	}
}

func TestRoleSwitch(t *testing.T) {
	h := newHarness(t)
	event := h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))

	h.react(t, "m1", "u1", "🪖")
	h.react(t, "m1", "u1", "🩺")

	removed := h.gateway.removed()
	if len(removed) != 1 {
		t.Fatalf("removals = %+v, want exactly one", removed)
	}
	if removed[0].Glyph != "🪖" || removed[0].UserID != "u1" || removed[0].MessageID != "m1" {
		t.Fatalf("removal = %+v, want the prior infantry glyph", removed[0])
	}
	if s := h.signup(t, event.ID, "u1"); s == nil || s.RoleKey != "medic" {
		t.Fatalf("signup = %+v, want medic", s)
	}

	// Echo of the engine's own removal.
	h.unreact(t, removed[0])
	if s := h.signup(t, event.ID, "u1"); s == nil || s.RoleKey != "medic" {
		t.Fatalf("signup after echo = %+v, want medic", s)
	}
}

func TestRoleSwitchSameGlyphDoesNotRemove(t *testing.T) {
	h := newHarness(t)
	h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))

	h.react(t, "m1", "u1", "🪖")
	h.react(t, "m1", "u1", "🪖")

	if removed := h.gateway.removed(); len(removed) != 0 {
		t.Fatalf("removals = %+v, want none", removed)
	}
}

func TestFailedRemovalIsNotLeftPending(t *testing.T) {
	h := newHarness(t)
	h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
	h.gateway.removeErr = errors.New("missing permissions")

	h.react(t, "m1", "u1", "🍕")

	if h.pending.Len() != 0 {
		t.Fatalf("pending removals = %d, want 0 after failure", h.pending.Len())
	}
}

func TestReactionRemove(t *testing.T) {
	h := newHarness(t)
	event := h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
	h.react(t, "m1", "u1", "🪖")
	h.flushRenders()

	// A stale glyph is a no-op.
	h.unreact(t, entities.Reaction{ChannelID: testBoardChannel, MessageID: "m1", UserID: "u1", Glyph: "🩺"})
	if h.signup(t, event.ID, "u1") == nil {
		t.Fatal("stale removal deleted the signup")
	}

	h.unreact(t, entities.Reaction{ChannelID: testBoardChannel, MessageID: "m1", UserID: "u1", Glyph: "🪖"})
	if s := h.signup(t, event.ID, "u1"); s != nil {
		t.Fatalf("signup = %+v after removal, want none", s)
	}
	if h.debouncer.Pending() != 1 {
		t.Fatal("withdrawal did not schedule a re-render")
	}
}

func TestReactionRemoveIgnoredCases(t *testing.T) {
	h := newHarness(t)
	h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
	ctx := context.Background()

	for _, r := range []entities.Reaction{
		{MessageID: "other", UserID: "u1", Glyph: "🪖"},
		{MessageID: "m1", UserID: "u1", Glyph: "🍕"},
		{MessageID: "m1", UserID: "nobody", Glyph: "🪖"},
	} {
		if err := h.engine.HandleReactionRemove(ctx, r); err != nil {
			t.Fatalf("HandleReactionRemove(%+v): %v", r, err)
		}
	}
	if h.debouncer.Pending() != 0 {
		t.Fatal("ignored removals scheduled a re-render")
	}
}

func TestRapidSignupsProduceOneEdit(t *testing.T) {
	h := newHarness(t)
	h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
	users := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"}
	for _, name := range users {
		h.gateway.names[name] = name
	}

	for _, name := range users {
		h.react(t, "m1", name, "🪖")
		h.clock.Advance(10 * time.Millisecond)
	}
	if h.gateway.editCount() != 0 {
		t.Fatalf("edits = %d inside the debounce window, want 0", h.gateway.editCount())
	}
	h.flushRenders()

	if h.gateway.editCount() != 1 {
		t.Fatalf("edits = %d, want 1", h.gateway.editCount())
	}
	edit := h.gateway.lastEdit()
	if !strings.Contains(edit, "Infantry (6)") {
		t.Errorf("edit does not count all signups:\n%s", edit)
	}
	for _, name := range users {
		if !strings.Contains(edit, "  "+name) {
			t.Errorf("edit is missing %s", name)
		}
	}
}

func TestDeduplicatedDeliveryMutatesOnce(t *testing.T) {
	h := newHarness(t)
	event := h.seedEvent(t, "m1", testEpoch.Add(48*time.Hour))
	dedup := NewDeduplicator(h.clock, DefaultDedupTTL)
	r := entities.Reaction{ChannelID: testBoardChannel, MessageID: "m1", UserID: "u1", Glyph: "🪖"}

	upserts := 0
	for i := 0; i < 2; i++ {
		if dedup.IsDuplicate("add:" + r.Key()) {
			continue
		}
		h.react(t, r.MessageID, r.UserID, r.Glyph)
		upserts++
	}
	if upserts != 1 {
		t.Fatalf("processed %d deliveries, want 1", upserts)
	}
	if h.signup(t, event.ID, "u1") == nil {
		t.Fatal("signup missing")
	}
}

func TestEndToEndSwitch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gateway.names["u1"] = "Alpha"
	h.gateway.script(testStaffUser, "Operation Dawn", "Bring snacks.", "2026-03-03 18:00")

	if err := h.lifecycle.CreateEvent(ctx, testStaffUser); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	post := h.gateway.posts[0]
	wantGlyphs := []string{"🪖", "🩺", "✈️", "🛡️", "🔭", entities.DefaultDeclinedGlyph}
	if got := h.gateway.added[post.messageID]; strings.Join(got, " ") != strings.Join(wantGlyphs, " ") {
		t.Fatalf("seeded glyphs = %v, want %v", got, wantGlyphs)
	}

	h.react(t, post.messageID, "u1", "🪖")
	h.flushRenders()
	if edit := h.gateway.lastEdit(); !strings.Contains(edit, "🪖 Infantry (1)\n  Alpha") {
		t.Fatalf("render after first signup:\n%s", edit)
	}

	h.react(t, post.messageID, "u1", "🩺")
	removed := h.gateway.removed()
	if len(removed) != 1 || removed[0].Glyph != "🪖" {
		t.Fatalf("removals = %+v, want the infantry glyph", removed)
	}
	h.unreact(t, removed[0])
	h.flushRenders()

	edit := h.gateway.lastEdit()
	if !strings.Contains(edit, "🩺 Medics (1)\n  Alpha") {
		t.Errorf("render after switch is missing Alpha under Medics:\n%s", edit)
	}
	if !strings.Contains(edit, "🪖 Infantry\n  —") {
		t.Errorf("render after switch still lists infantry:\n%s", edit)
	}
}
