package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicedesk/servicedesk/internal/platform/db"
)

const pgForeignKeyViolation = "23503"

// RoleSource loads the role set of a single user.
type RoleSource interface {
	UserPermissionInfo(ctx context.Context, userID int64) (*PermissionInfo, error)
}

// Store is the persisted user/role assignment table.
type Store interface {
	RoleSource
	ListRoles(ctx context.Context) ([]Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	RecentUserIDs(ctx context.Context, limit int) ([]int64, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL backed store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// UserPermissionInfo joins users, user_roles and roles for an active user. It returns nil
// when the user is unknown, disabled or has no role assignments.
func (s *PGStore) UserPermissionInfo(ctx context.Context, userID int64) (*PermissionInfo, error) {
	rows, err := s.pool.Query(ctx, `
SELECT u.id, u.username, r.id, r.name
FROM users u
JOIN user_roles ur ON ur.user_id = u.id
JOIN roles r ON r.id = ur.role_id
WHERE u.id = $1 AND u.is_active
ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: query permission info: %w", err)
	}
	defer rows.Close()

	var info *PermissionInfo
	for rows.Next() {
		var (
			uid      int64
			username string
			ref      RoleRef
		)
		if err := rows.Scan(&uid, &username, &ref.RoleID, &ref.RoleName); err != nil {
			return nil, fmt.Errorf("rbac: scan permission info: %w", err)
		}
		if info == nil {
			info = &PermissionInfo{UserID: uid, Username: username}
		}
		info.Roles = append(info.Roles, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: iterate permission info: %w", err)
	}
	return info, nil
}

// ListRoles returns all roles ordered by id.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	roles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Role, error) {
		var role Role
		err := row.Scan(&role.ID, &role.Name, &role.CreatedAt)
		return role, err
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// AssignRole assigns a role to the given user. Assigning an existing pair is a no-op.
func (s *PGStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID); err != nil {
			return mapWriteError(err)
		}
		return touchUser(ctx, tx, userID)
	})
}

// RemoveRole removes a role from a user.
func (s *PGStore) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return touchUser(ctx, tx, userID)
	})
}

// SetUserRoles replaces the role set of a user in one transaction.
func (s *PGStore) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID); err != nil {
				return mapWriteError(err)
			}
		}
		return touchUser(ctx, tx, userID)
	})
}

// touchUser bumps updated_at so role changes surface in RecentUserIDs.
func touchUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx, `UPDATE users SET updated_at = NOW() WHERE id = $1`, userID)
	return err
}

// RecentUserIDs lists users most recently updated first, including disabled users and
// users without roles so stale cache entries for them can be dropped.
func (s *PGStore) RecentUserIDs(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
SELECT u.id
FROM users u
ORDER BY u.updated_at DESC, u.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	return err
}

var _ Store = (*PGStore)(nil)
