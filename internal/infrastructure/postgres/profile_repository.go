package postgres

import (
	"context"
	"errors"

	domain "nailbliss/session/internal/domain/session"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// querier is the part of *pgxpool.Pool the repository uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProfileRepository persists profile rows in PostgreSQL.
type ProfileRepository struct {
	db querier
}

// NewProfileRepository constructs a repository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: pool}
}

var _ domain.ProfileStore = (*ProfileRepository)(nil)

// SelectByID retrieves a profile by its user id.
func (r *ProfileRepository) SelectByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	const query = `
SELECT id, email, full_name, role, current_points, total_visits, created_at, updated_at
FROM profiles WHERE id = $1
`
	row := r.db.QueryRow(ctx, query, id)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, translateError(err)
	}
	return profile, nil
}

// Insert creates the profile row for a freshly registered user.
func (r *ProfileRepository) Insert(ctx context.Context, profile *domain.UserProfile) error {
	const query = `
INSERT INTO profiles (id, email, full_name, role, current_points, total_visits, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.db.Exec(ctx, query,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.Role,
		profile.CurrentPoints,
		profile.TotalVisits,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProfileExists
		}
		return translateError(err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.Role,
		&p.CurrentPoints,
		&p.TotalVisits,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// translateError exposes server-side Postgres errors as backend errors so
// permission failures are classified by their SQLSTATE code.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return &domain.BackendError{Code: pgErr.Code, Message: pgErr.Message}
}
