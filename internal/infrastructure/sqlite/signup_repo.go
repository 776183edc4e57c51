package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
)

var _ output.SignupRepository = (*SignupRepository)(nil)

const signupColumns = `event_id, user_id, display_name, role_key, signed_up_at`

// SignupRepository implements output.SignupRepository on SQLite.
type SignupRepository struct {
	db *sql.DB
}

func NewSignupRepository(db *sql.DB) *SignupRepository {
	return &SignupRepository{db: db}
}

func scanSignup(row rowScanner) (entities.Signup, error) {
	var (
		s          entities.Signup
		eventID    int64
		signedUpAt string
	)
	if err := row.Scan(&eventID, &s.UserID, &s.DisplayName, &s.RoleKey, &signedUpAt); err != nil {
		return entities.Signup{}, err
	}
	s.EventID = uint(eventID)
	t, err := parseTime(signedUpAt)
	if err != nil {
		return entities.Signup{}, err
	}
	s.SignedUpAt = t
	return s, nil
}

// Upsert replaces the role and display name of an existing signup and
// refreshes its signup time.
func (r *SignupRepository) Upsert(ctx context.Context, signup *entities.Signup) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO signups (event_id, user_id, display_name, role_key)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id, user_id) DO UPDATE SET
			display_name = excluded.display_name,
			role_key = excluded.role_key,
			signed_up_at = strftime('%Y-%m-%d %H:%M:%f', 'now')
		RETURNING signed_up_at`,
		int64(signup.EventID), signup.UserID, signup.DisplayName, signup.RoleKey,
	)
	var signedUpAt string
	if err := row.Scan(&signedUpAt); err != nil {
		return fmt.Errorf("upsert signup: %w", err)
	}
	t, err := parseTime(signedUpAt)
	if err != nil {
		return fmt.Errorf("upsert signup: %w", err)
	}
	signup.SignedUpAt = t
	return nil
}

func (r *SignupRepository) Remove(ctx context.Context, eventID uint, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM signups WHERE event_id = ? AND user_id = ?`, int64(eventID), userID)
	if err != nil {
		return false, fmt.Errorf("remove signup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove signup: %w", err)
	}
	return n > 0, nil
}

func (r *SignupRepository) Find(ctx context.Context, eventID uint, userID string) (*entities.Signup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+signupColumns+` FROM signups WHERE event_id = ? AND user_id = ?`,
		int64(eventID), userID)
	s, err := scanSignup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get signup: %w", domain.ErrSignupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get signup: %w", err)
	}
	return &s, nil
}

func (r *SignupRepository) FindByEventID(ctx context.Context, eventID uint) ([]entities.Signup, error) {
	return r.list(ctx, `
		SELECT `+signupColumns+` FROM signups
		WHERE event_id = ?
		ORDER BY signed_up_at, id`, eventID)
}

func (r *SignupRepository) FindNonDeclined(ctx context.Context, eventID uint) ([]entities.Signup, error) {
	return r.list(ctx, `
		SELECT `+signupColumns+` FROM signups
		WHERE event_id = ? AND role_key <> '`+entities.DeclinedRoleKey+`'
		ORDER BY signed_up_at, id`, eventID)
}

func (r *SignupRepository) list(ctx context.Context, query string, eventID uint) ([]entities.Signup, error) {
	rows, err := r.db.QueryContext(ctx, query, int64(eventID))
	if err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	defer rows.Close()

	var signups []entities.Signup
	for rows.Next() {
		s, err := scanSignup(rows)
		if err != nil {
			return nil, fmt.Errorf("list signups: %w", err)
		}
		signups = append(signups, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	return signups, nil
}

func (r *SignupRepository) DeleteByEventID(ctx context.Context, eventID uint) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM signups WHERE event_id = ?`, int64(eventID))
	if err != nil {
		return 0, fmt.Errorf("delete signups: %w", err)
	}
	return res.RowsAffected()
}
