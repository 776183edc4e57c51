package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
)

var _ output.SignupRepository = (*SignupRepository)(nil)

// SignupRepository implements output.SignupRepository on PostgreSQL.
type SignupRepository struct {
	pool *pgxpool.Pool
}

func NewSignupRepository(pool *pgxpool.Pool) *SignupRepository {
	return &SignupRepository{pool: pool}
}

// Upsert replaces the role and display name of an existing signup and
// refreshes its signup time, which moves it to the end of its role list.
func (r *SignupRepository) Upsert(ctx context.Context, signup *entities.Signup) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO signups (event_id, user_id, display_name, role_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			role_key = EXCLUDED.role_key,
			signed_up_at = now()
		RETURNING signed_up_at`,
		int64(signup.EventID), signup.UserID, signup.DisplayName, signup.RoleKey,
	)
	if err := row.Scan(&signup.SignedUpAt); err != nil {
		return fmt.Errorf("upsert signup: %w", err)
	}
	signup.SignedUpAt = signup.SignedUpAt.UTC()
	return nil
}

func (r *SignupRepository) Remove(ctx context.Context, eventID uint, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM signups WHERE event_id = $1 AND user_id = $2`, int64(eventID), userID)
	if err != nil {
		return false, fmt.Errorf("remove signup: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SignupRepository) Find(ctx context.Context, eventID uint, userID string) (*entities.Signup, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+signupColumns+` FROM signups WHERE event_id = $1 AND user_id = $2`,
		int64(eventID), userID)
	s, err := scanSignup(row)
	if isNoRows(err) {
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
		WHERE event_id = $1
		ORDER BY signed_up_at, id`, eventID)
}

func (r *SignupRepository) FindNonDeclined(ctx context.Context, eventID uint) ([]entities.Signup, error) {
	return r.list(ctx, `
		SELECT `+signupColumns+` FROM signups
		WHERE event_id = $1 AND role_key <> '`+entities.DeclinedRoleKey+`'
		ORDER BY signed_up_at, id`, eventID)
}

func (r *SignupRepository) list(ctx context.Context, query string, eventID uint) ([]entities.Signup, error) {
	rows, err := r.pool.Query(ctx, query, int64(eventID))
	if err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	signups, err := pgx.CollectRows(rows, collectSignup)
	if err != nil {
		return nil, fmt.Errorf("list signups: %w", err)
	}
	return signups, nil
}

func (r *SignupRepository) DeleteByEventID(ctx context.Context, eventID uint) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM signups WHERE event_id = $1`, int64(eventID))
	if err != nil {
		return 0, fmt.Errorf("delete signups: %w", err)
	}
	return tag.RowsAffected(), nil
}
