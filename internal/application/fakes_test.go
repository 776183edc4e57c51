package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memEvents is an in-memory EventRepository.
type memEvents struct {
	mu        sync.Mutex
	nextID    uint
	rows      map[uint]*entities.Event
	createErr error
}

var _ output.EventRepository = (*memEvents)(nil)

func newMemEvents() *memEvents {
	return &memEvents{rows: make(map[uint]*entities.Event)}
}

func (m *memEvents) Create(_ context.Context, event *entities.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, e := range m.rows {
		if e.MessageID == event.MessageID {
			return domain.ErrDuplicateMessage
		}
	}
	m.nextID++
	event.ID = m.nextID
	row := *event
	m.rows[row.ID] = &row
	return nil
}

func (m *memEvents) FindByMessageID(_ context.Context, messageID string) (*entities.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.MessageID == messageID && !e.Expired {
			row := *e
			return &row, nil
		}
	}
	return nil, domain.ErrEventNotFound
}

func (m *memEvents) FindByID(_ context.Context, id uint) (*entities.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.Expired {
		return nil, domain.ErrEventNotFound
	}
	row := *e
	return &row, nil
}

func (m *memEvents) MessageTracked(_ context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEvents) UpdateFields(_ context.Context, id uint, update entities.EventUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.Expired {
		return domain.ErrEventNotFound
	}
	if update.Title != nil {
		e.Title = *update.Title
	}
	if update.Description != nil {
		e.Description = *update.Description
	}
	if update.EventTime != nil {
		e.EventTime = *update.EventTime
	}
	return nil
}

func (m *memEvents) MarkExpired(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	e.Expired = true
	return nil
}

func (m *memEvents) MarkReminderSent(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	e.ReminderSent = true
	return nil
}

func (m *memEvents) FindNeedingReminder(_ context.Context, now time.Time, lead time.Duration) ([]entities.Event, error) {
	return m.filter(func(e *entities.Event) bool {
		return !e.Expired && !e.ReminderSent && e.EventTime.After(now) && !e.EventTime.After(now.Add(lead))
	}), nil
}

func (m *memEvents) FindExpired(_ context.Context, cutoff time.Time) ([]entities.Event, error) {
	return m.filter(func(e *entities.Event) bool {
		return !e.Expired && e.EventTime.Before(cutoff)
	}), nil
}

func (m *memEvents) filter(keep func(*entities.Event) bool) []entities.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Event
	for _, e := range m.rows {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memEvents) get(t *testing.T, id uint) entities.Event {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		t.Fatalf("event %d not stored", id)
	}
	return *e
}

// memSignups is an in-memory SignupRepository ordered by signup sequence.
type memSignups struct {
	mu   sync.Mutex
	seq  int
	rows map[string]memSignup
}

type memSignup struct {
	seq    int
	signup entities.Signup
}

var _ output.SignupRepository = (*memSignups)(nil)

func newMemSignups() *memSignups {
	return &memSignups{rows: make(map[string]memSignup)}
}

func signupKey(eventID uint, userID string) string {
	return fmt.Sprintf("%d/%s", eventID, userID)
}

func (m *memSignups) Upsert(_ context.Context, signup *entities.Signup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.rows[signupKey(signup.EventID, signup.UserID)] = memSignup{seq: m.seq, signup: *signup}
	return nil
}

func (m *memSignups) Remove(_ context.Context, eventID uint, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := signupKey(eventID, userID)
	_, ok := m.rows[key]
	delete(m.rows, key)
	return ok, nil
}

func (m *memSignups) Find(_ context.Context, eventID uint, userID string) (*entities.Signup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[signupKey(eventID, userID)]
	if !ok {
		return nil, domain.ErrSignupNotFound
	}
	s := row.signup
	return &s, nil
}

func (m *memSignups) FindByEventID(_ context.Context, eventID uint) ([]entities.Signup, error) {
	return m.list(eventID, func(entities.Signup) bool { return true }), nil
}

func (m *memSignups) FindNonDeclined(_ context.Context, eventID uint) ([]entities.Signup, error) {
	return m.list(eventID, func(s entities.Signup) bool { return !s.Declined() }), nil
}

func (m *memSignups) DeleteByEventID(_ context.Context, eventID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, row := range m.rows {
		if row.signup.EventID == eventID {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func (m *memSignups) list(eventID uint, keep func(entities.Signup) bool) []entities.Signup {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []memSignup
	for _, row := range m.rows {
		if row.signup.EventID == eventID && keep(row.signup) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]entities.Signup, len(rows))
	for i, row := range rows {
		out[i] = row.signup
	}
	return out
}

type sentMessage struct {
	channelID string
	messageID string
	content   string
}

// fakeGateway records every outbound call. Direct-message replies are
// scripted per user; an exhausted script behaves as a timeout.
type fakeGateway struct {
	mu sync.Mutex

	nextMessage int
	posts       []sentMessage
	edits       []sentMessage
	deleted     []string
	added       map[string][]string
	removals    []entities.Reaction
	dms         map[string][]string

	replies     map[string][]string
	memberRoles map[string][]string
	names       map[string]string
	own         []string

	rolesErr  error
	sendErr   error
	editErr   error
	deleteErr error
	removeErr error
	dmErr     map[string]error
}

var _ output.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		added:       make(map[string][]string),
		dms:         make(map[string][]string),
		replies:     make(map[string][]string),
		memberRoles: make(map[string][]string),
		names:       make(map[string]string),
		dmErr:       make(map[string]error),
	}
}

func gatewayErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrGateway, err)
}

func (g *fakeGateway) SendDirectMessage(_ context.Context, userID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.dmErr[userID]; err != nil {
		return gatewayErr(err)
	}
	g.dms[userID] = append(g.dms[userID], content)
	return nil
}

func (g *fakeGateway) SendChannelMessage(_ context.Context, channelID, content string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", gatewayErr(g.sendErr)
	}
	g.nextMessage++
	id := fmt.Sprintf("m%d", g.nextMessage)
	g.posts = append(g.posts, sentMessage{channelID: channelID, messageID: id, content: content})
	return id, nil
}

func (g *fakeGateway) EditMessage(_ context.Context, channelID, messageID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editErr != nil {
		return gatewayErr(g.editErr)
	}
	g.edits = append(g.edits, sentMessage{channelID: channelID, messageID: messageID, content: content})
	return nil
}

func (g *fakeGateway) DeleteMessage(_ context.Context, _, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deleteErr != nil {
		return gatewayErr(g.deleteErr)
	}
	g.deleted = append(g.deleted, messageID)
	return nil
}

func (g *fakeGateway) AddReaction(_ context.Context, _, messageID, glyph string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.added[messageID] = append(g.added[messageID], glyph)
	return nil
}

func (g *fakeGateway) RemoveReaction(_ context.Context, channelID, messageID, glyph, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.removeErr != nil {
		return gatewayErr(g.removeErr)
	}
	g.removals = append(g.removals, entities.Reaction{
		ChannelID: channelID,
		MessageID: messageID,
		UserID:    userID,
		Glyph:     glyph,
	})
	return nil
}

func (g *fakeGateway) MemberRoles(_ context.Context, userID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rolesErr != nil {
		return nil, gatewayErr(g.rolesErr)
	}
	return g.memberRoles[userID], nil
}

func (g *fakeGateway) MemberDisplayName(_ context.Context, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name, ok := g.names[userID]
	if !ok {
		return "", gatewayErr(fmt.Errorf("unknown member %s", userID))
	}
	return name, nil
}

func (g *fakeGateway) WaitForDirectMessage(_ context.Context, userID string, _ time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	script := g.replies[userID]
	if len(script) == 0 {
		return "", domain.ErrDialogueTimeout
	}
	g.replies[userID] = script[1:]
	return script[0], nil
}

func (g *fakeGateway) RecentOwnMessages(_ context.Context, _ string, limit int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.own) > limit {
		return g.own[:limit], nil
	}
	return g.own, nil
}

func (g *fakeGateway) MessageLink(channelID, messageID string) string {
	return "https://chat.example/" + channelID + "/" + messageID
}

func (g *fakeGateway) script(userID string, replies ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies[userID] = append(g.replies[userID], replies...)
}

func (g *fakeGateway) directMessages(userID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.dms[userID]...)
}

func (g *fakeGateway) editCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edits)
}

func (g *fakeGateway) lastEdit() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.edits) == 0 {
		return ""
	}
	return g.edits[len(g.edits)-1].content
}

func (g *fakeGateway) removed() []entities.Reaction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entities.Reaction(nil), g.removals...)
}

// keyTranslator renders a message as its key followed by its data, so
// tests can assert on which message was sent.
type keyTranslator struct{}

func (keyTranslator) T(_ string, key string, data map[string]any) string {
	if len(data) == 0 {
		return key
	}
	return key + " " + fmt.Sprint(data)
}

func testRoles(t *testing.T) *entities.RoleConfig {
	t.Helper()
	cfg := &entities.RoleConfig{Roles: []entities.RoleDefinition{
		{Key: "infantry", Label: "Infantry", Glyph: "🪖"},
		{Key: "medic", Label: "Medics", Glyph: "🩺"},
		{Key: "pilot", Label: "Pilots", Glyph: "✈️", AcceptedRoleIDs: []string{"role-pilot"}},
		{Key: "armor", Label: "Armor", Glyph: "🛡️"},
		{Key: "recon", Label: "Recon", Glyph: "🔭"},
	}}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test roles invalid: %v", err)
	}
	return cfg
}

// harness wires every application service over the in-memory fakes.
type harness struct {
	clock     *clockwork.FakeClock
	events    *memEvents
	signups   *memSignups
	gateway   *fakeGateway
	roles     *entities.RoleConfig
	board     *Board
	debouncer *Debouncer
	pending   *PendingRemovals
	engine    *SignupService
	lifecycle *EventService
	scheduler *Scheduler
}

const (
	testBoardChannel = "board"
	testStaffRole    = "role-staff"
	testStaffUser    = "staff-1"
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   clockwork.NewFakeClockAt(testEpoch),
		events:  newMemEvents(),
		signups: newMemSignups(),
		gateway: newFakeGateway(),
		roles:   testRoles(t),
		pending: NewPendingRemovals(),
	}
	logger := discardLogger()
	h.gateway.memberRoles[testStaffUser] = []string{testStaffRole}
	h.gateway.names[testStaffUser] = "Sgt. Rock"

	h.board = NewBoard(h.events, h.signups, h.gateway, h.roles, keyTranslator{}, h.clock,
		BoardConfig{Location: time.UTC, Locale: "en"}, logger)
	h.debouncer = NewDebouncer(h.clock, DefaultRenderDebounce, h.board.RerenderDetached)
	h.engine = NewSignupService(h.events, h.signups, h.gateway, h.roles, testStaffRole, h.pending, h.debouncer, logger)
	h.lifecycle = NewEventService(h.events, h.signups, h.gateway, h.board, h.debouncer, keyTranslator{}, h.clock,
		EventConfig{
			BoardChannelID: testBoardChannel,
			StaffRoleID:    testStaffRole,
			Locale:         "en",
			CommandPrefix:  "!",
			Location:       time.UTC,
		}, logger)
	h.scheduler = NewScheduler(h.events, h.signups, h.gateway, h.debouncer, keyTranslator{}, h.clock,
		SchedulerConfig{Locale: "en"}, logger)
	return h
}

// flushRenders lets the debounce window pass and waits for the renders it
// released.
func (h *harness) flushRenders() {
	h.clock.Advance(DefaultRenderDebounce)
	h.debouncer.Wait()
}

// seedEvent stores an active event directly, bypassing the dialogue.
func (h *harness) seedEvent(t *testing.T, messageID string, eventTime time.Time) *entities.Event {
	t.Helper()
	event := &entities.Event{
		MessageID: messageID,
		ChannelID: testBoardChannel,
		CreatorID: testStaffUser,
		Title:     "Operation " + messageID,
		EventTime: eventTime,
		CreatedAt: h.clock.Now(),
	}
	if err := h.events.Create(context.Background(), event); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func (h *harness) react(t *testing.T, messageID, userID, glyph string) {
	t.Helper()
	r := entities.Reaction{ChannelID: testBoardChannel, MessageID: messageID, UserID: userID, Glyph: glyph}
	if err := h.engine.HandleReactionAdd(context.Background(), r); err != nil {
		t.Fatalf("HandleReactionAdd(%s %s): %v", userID, glyph, err)
	}
}

func (h *harness) unreact(t *testing.T, r entities.Reaction) {
	t.Helper()
	if err := h.engine.HandleReactionRemove(context.Background(), r); err != nil {
		t.Fatalf("HandleReactionRemove(%s %s): %v", r.UserID, r.Glyph, err)
	}
}

func (h *harness) signup(t *testing.T, eventID uint, userID string) *entities.Signup {
	t.Helper()
	s, err := h.signups.Find(context.Background(), eventID, userID)
	if err != nil {
		return nil
	}
	return s
}
