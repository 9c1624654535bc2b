package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servicedesk/servicedesk/internal/shared"
)

// Repository persists tickets.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Ticket, error)
	Get(ctx context.Context, id int64) (Ticket, error)
	Create(ctx context.Context, ticket Ticket) (Ticket, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Ticket, error)
	SetStatus(ctx context.Context, id int64, status Status) (Ticket, error)
	SetAssignee(ctx context.Context, id int64, assigneeID *int64) (Ticket, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Restore(ctx context.Context, id int64) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const ticketColumns = `id, reference, title, description, status, priority, project_id, created_by, assignee_id, deleted_at, created_at, updated_at`

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.Reference, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.ProjectID, &t.CreatedBy, &t.AssigneeID, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, shared.ErrNotFound
	}
	return t, err
}

// List returns tickets matching filter, newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Ticket, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)
	if filter.Deleted {
		where[0] = "deleted_at IS NOT NULL"
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if filter.VisibleTo > 0 {
		args = append(args, filter.VisibleTo)
		where = append(where, fmt.Sprintf("(created_by = $%d OR assignee_id = $%d)", len(args), len(args)))
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tickets: list: %w", err)
	}
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("tickets: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get loads a ticket by id, including soft-deleted ones.
func (r *PGRepository) Get(ctx context.Context, id int64) (Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
}

// Create inserts a ticket and returns the stored row.
func (r *PGRepository) Create(ctx context.Context, t Ticket) (Ticket, error) {
	if t.Reference == uuid.Nil {
		t.Reference = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO tickets (reference, title, description, status, priority, project_id, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+ticketColumns,
		t.Reference, t.Title, t.Description, t.Status, t.Priority, t.ProjectID, t.CreatedBy)
	created, err := scanTicket(row)
	if err != nil {
		return Ticket{}, fmt.Errorf("tickets: create: %w", err)
	}
	return created, nil
}

// Update applies non-nil fields of input to a live ticket.
func (r *PGRepository) Update(ctx context.Context, id int64, input UpdateInput) (Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, `
UPDATE tickets SET
    title = COALESCE($2, title),
    description = COALESCE($3, description),
    priority = COALESCE($4, priority),
    project_id = COALESCE($5, project_id),
    updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
RETURNING `+ticketColumns, id, input.Title, input.Description, input.Priority, input.ProjectID))
}

// SetStatus moves a live ticket to status.
func (r *PGRepository) SetStatus(ctx context.Context, id int64, status Status) (Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, `
UPDATE tickets SET status = $2, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
RETURNING `+ticketColumns, id, status))
}

// SetAssignee assigns or unassigns a live ticket.
func (r *PGRepository) SetAssignee(ctx context.Context, id int64, assigneeID *int64) (Ticket, error) {
	return scanTicket(r.pool.QueryRow(ctx, `
UPDATE tickets SET assignee_id = $2, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
RETURNING `+ticketColumns, id, assigneeID))
}

// SoftDelete marks a live ticket deleted.
func (r *PGRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tickets SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("tickets: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Restore clears the deletion mark of a ticket.
func (r *PGRepository) Restore(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tickets SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("tickets: restore: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
