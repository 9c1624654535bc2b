package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicedesk/servicedesk/internal/shared"
)

const pgUniqueViolation = "23505"

// ErrDuplicate indicates a username or email already in use.
var ErrDuplicate = errors.New("users: duplicate username or email")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, email, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return User{}, shared.ErrNotFound
	case err != nil:
		return User{}, mapWriteError(err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser loads one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// CreateUser inserts an active user with a pre-hashed password.
func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING `+userColumns, username, email, passwordHash))
}

// UpdateUser applies non-nil fields of input.
func (r *Repository) UpdateUser(ctx context.Context, id int64, input UpdateInput) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
UPDATE users SET
    email = COALESCE($2, email),
    is_active = COALESCE($3, is_active),
    updated_at = NOW()
WHERE id = $1
RETURNING `+userColumns, id, input.Email, input.IsActive))
}

// DeleteUser removes a user; role assignments cascade.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", mapWriteError(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}
