package tickets

import (
	"time"

	"github.com/google/uuid"
)

// Status is the workflow state of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Priority ranks ticket urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ticket is a helpdesk request.
type Ticket struct {
	ID          int64      `json:"id"`
	Reference   uuid.UUID  `json:"reference"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// VisibleTo reports whether userID created or is assigned to the ticket.
func (t Ticket) VisibleTo(userID int64) bool {
	if t.CreatedBy == userID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// Assignment describes who is working a ticket.
type Assignment struct {
	TicketID   int64  `json:"ticket_id"`
	AssigneeID *int64 `json:"assignee_id"`
	Status     Status `json:"status"`
}

// ListFilter narrows ticket listings.
type ListFilter struct {
	Status  Status
	Search  string
	Limit   int
	Offset  int
	Deleted bool
	// VisibleTo restricts results to tickets created by or assigned to the user. Zero means all.
	VisibleTo int64
}

// CreateInput carries the fields of a new ticket.
type CreateInput struct {
	Title       string
	Description string
	Priority    Priority
	ProjectID   *int64
	CreatedBy   int64
}

// UpdateInput carries editable ticket fields. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Priority    *Priority
	ProjectID   *int64
}
