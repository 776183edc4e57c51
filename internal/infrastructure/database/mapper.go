package database

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"opboard/internal/domain/entities"
)

const eventColumns = `id, message_id, channel_id, creator_id, title, description,
	event_time, created_at, reminder_sent, expired`

const signupColumns = `event_id, user_id, display_name, role_key, signed_up_at`

// pgtypeTimestamptzToTime returns t.Time in UTC when Valid, else zero time.
func pgtypeTimestamptzToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func timeToPgtypeTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func scanEvent(row pgx.Row) (entities.Event, error) {
	var (
		e         entities.Event
		id        int64
		eventTime pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &e.MessageID, &e.ChannelID, &e.CreatorID, &e.Title, &e.Description,
		&eventTime, &createdAt, &e.ReminderSent, &e.Expired)
	if err != nil {
		return entities.Event{}, err
	}
	e.ID = uint(id)
	e.EventTime = pgtypeTimestamptzToTime(eventTime)
	e.CreatedAt = pgtypeTimestamptzToTime(createdAt)
	return e, nil
}

func collectEvent(row pgx.CollectableRow) (entities.Event, error) {
	return scanEvent(row)
}

func scanSignup(row pgx.Row) (entities.Signup, error) {
	var (
		s          entities.Signup
		eventID    int64
		signedUpAt pgtype.Timestamptz
	)
	if err := row.Scan(&eventID, &s.UserID, &s.DisplayName, &s.RoleKey, &signedUpAt); err != nil {
		return entities.Signup{}, err
	}
	s.EventID = uint(eventID)
	s.SignedUpAt = pgtypeTimestamptzToTime(signedUpAt)
	return s, nil
}

func collectSignup(row pgx.CollectableRow) (entities.Signup, error) {
	return scanSignup(row)
}
