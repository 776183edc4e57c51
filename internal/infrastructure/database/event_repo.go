package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
)

var _ output.EventRepository = (*EventRepository)(nil)

// EventRepository implements output.EventRepository on PostgreSQL.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Create(ctx context.Context, event *entities.Event) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO events (message_id, channel_id, creator_id, title, description, event_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		RETURNING id, created_at`,
		event.MessageID, event.ChannelID, event.CreatorID, event.Title, event.Description,
		timeToPgtypeTimestamptz(event.EventTime), timeToPgtypeTimestamptz(event.CreatedAt),
	)
	var id int64
	var createdAt time.Time
	if err := row.Scan(&id, &createdAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create event: %w", domain.ErrDuplicateMessage)
		}
		return fmt.Errorf("create event: %w", err)
	}
	event.ID = uint(id)
	event.CreatedAt = createdAt.UTC()
	return nil
}

func (r *EventRepository) FindByMessageID(ctx context.Context, messageID string) (*entities.Event, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE message_id = $1 AND NOT expired`, messageID)
	return r.one(row, "get event by message id")
}

func (r *EventRepository) FindByID(ctx context.Context, id uint) (*entities.Event, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND NOT expired`, int64(id))
	return r.one(row, "get event by id")
}

func (r *EventRepository) one(row pgx.Row, op string) (*entities.Event, error) {
	e, err := scanEvent(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &e, nil
}

func (r *EventRepository) MessageTracked(ctx context.Context, messageID string) (bool, error) {
	var tracked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE message_id = $1)`, messageID).Scan(&tracked)
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
		eventTime = timeToPgtypeTimestamptz(*update.EventTime)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			event_time = COALESCE($4, event_time)
		WHERE id = $1 AND NOT expired`,
		int64(id), update.Title, update.Description, eventTime,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update event %d: %w", id, domain.ErrEventNotFound)
	}
	return nil
}

func (r *EventRepository) MarkExpired(ctx context.Context, id uint) error {
	return r.setFlag(ctx, id, `UPDATE events SET expired = TRUE WHERE id = $1`, "mark event expired")
}

func (r *EventRepository) MarkReminderSent(ctx context.Context, id uint) error {
	return r.setFlag(ctx, id, `UPDATE events SET reminder_sent = TRUE WHERE id = $1`, "mark reminder sent")
}

func (r *EventRepository) setFlag(ctx context.Context, id uint, query, op string) error {
	tag, err := r.pool.Exec(ctx, query, int64(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", op, id, domain.ErrEventNotFound)
	}
	return nil
}

func (r *EventRepository) FindNeedingReminder(ctx context.Context, now time.Time, lead time.Duration) ([]entities.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE NOT expired AND NOT reminder_sent AND event_time > $1 AND event_time <= $2
		ORDER BY event_time, id`,
		now.UTC(), now.Add(lead).UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list events needing reminder: %w", err)
	}
	events, err := pgx.CollectRows(rows, collectEvent)
	if err != nil {
		return nil, fmt.Errorf("list events needing reminder: %w", err)
	}
	return events, nil
}

func (r *EventRepository) FindExpired(ctx context.Context, cutoff time.Time) ([]entities.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE NOT expired AND event_time < $1
		ORDER BY event_time, id`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired events: %w", err)
	}
	events, err := pgx.CollectRows(rows, collectEvent)
	if err != nil {
		return nil, fmt.Errorf("list expired events: %w", err)
	}
	return events, nil
}
