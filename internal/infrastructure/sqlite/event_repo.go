package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
)

var _ output.EventRepository = (*EventRepository)(nil)

const eventColumns = `id, message_id, channel_id, creator_id, title, description,
	event_time, created_at, reminder_sent, expired`

type rowScanner interface {
	Scan(dest ...any) error
}

// EventRepository implements output.EventRepository on SQLite.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row rowScanner) (entities.Event, error) {
	var (
		e                    entities.Event
		id                   int64
		eventTime, createdAt string
	)
	err := row.Scan(&id, &e.MessageID, &e.ChannelID, &e.CreatorID, &e.Title, &e.Description,
		&eventTime, &createdAt, &e.ReminderSent, &e.Expired)
	if err != nil {
		return entities.Event{}, err
	}
	e.ID = uint(id)
	if e.EventTime, err = parseTime(eventTime); err != nil {
		return entities.Event{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return entities.Event{}, err
	}
	return e, nil
}

func (r *EventRepository) Create(ctx context.Context, event *entities.Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (message_id, channel_id, creator_id, title, description, event_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.MessageID, event.ChannelID, event.CreatorID, event.Title, event.Description,
		formatTime(event.EventTime), formatTime(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create event: %w", domain.ErrDuplicateMessage)
		}
		return fmt.Errorf("create event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	event.ID = uint(id)
	event.CreatedAt = createdAt.UTC().Truncate(time.Second)
	return nil
}

func (r *EventRepository) FindByMessageID(ctx context.Context, messageID string) (*entities.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE message_id = ? AND expired = 0`, messageID)
	return r.one(row, "get event by message id")
}

func (r *EventRepository) FindByID(ctx context.Context, id uint) (*entities.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND expired = 0`, int64(id))
	return r.one(row, "get event by id")
}

func (r *EventRepository) one(row *sql.Row, op string) (*entities.Event, error) {
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &e, nil
}

func (r *EventRepository) MessageTracked(ctx context.Context, messageID string) (bool, error) {
	var tracked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE message_id = ?)`, messageID).Scan(&tracked)
	if err != nil {
		return false, fmt.Errorf("message tracked: %w", err)
	}
	return tracked, nil
}

func (r *EventRepository) UpdateFields(ctx context.Context, id uint, update entities.EventUpdate) error {
	if update.Empty() {
		return nil
	}
	var eventTime any
	if update.EventTime != nil {
		eventTime = formatTime(*update.EventTime)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET
			title = COALESCE(?, title),
			description = COALESCE(?, description),
			event_time = COALESCE(?, event_time)
		WHERE id = ? AND expired = 0`,
		nullable(update.Title), nullable(update.Description), eventTime, int64(id),
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return affected(res, fmt.Sprintf("update event %d", id), domain.ErrEventNotFound)
}

func (r *EventRepository) MarkExpired(ctx context.Context, id uint) error {
	res, err := r.db.ExecContext(ctx, `UPDATE events SET expired = 1 WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("mark event expired: %w", err)
	}
	return affected(res, fmt.Sprintf("mark event %d expired", id), domain.ErrEventNotFound)
}

func (r *EventRepository) MarkReminderSent(ctx context.Context, id uint) error {
	res, err := r.db.ExecContext(ctx, `UPDATE events SET reminder_sent = 1 WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return affected(res, fmt.Sprintf("mark reminder sent %d", id), domain.ErrEventNotFound)
}

func (r *EventRepository) FindNeedingReminder(ctx context.Context, now time.Time, lead time.Duration) ([]entities.Event, error) {
	return r.list(ctx, "list events needing reminder", `
		SELECT `+eventColumns+` FROM events
		WHERE expired = 0 AND reminder_sent = 0 AND event_time > ? AND event_time <= ?
		ORDER BY event_time, id`,
		formatTime(now), formatTime(now.Add(lead)))
}

func (r *EventRepository) FindExpired(ctx context.Context, cutoff time.Time) ([]entities.Event, error) {
	return r.list(ctx, "list expired events", `
		SELECT `+eventColumns+` FROM events
		WHERE expired = 0 AND event_time < ?
		ORDER BY event_time, id`,
		formatTime(cutoff))
}

func (r *EventRepository) list(ctx context.Context, op, query string, args ...any) ([]entities.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var events []entities.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func affected(res sql.Result, op string, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
