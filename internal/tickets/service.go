package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/servicedesk/servicedesk/internal/rbac"
	"github.com/servicedesk/servicedesk/internal/shared"
)

var (
	// ErrNotFound hides tickets that do not exist or are outside the caller's view.
	ErrNotFound = errors.New("tickets: not found")
	// ErrInvalidInput indicates a rejected field value.
	ErrInvalidInput = errors.New("tickets: invalid input")
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	exportPageSize  = 10000
)

// Service applies viewability rules on top of the repository. Route-level
// authorization is done by the gate; the service only narrows which rows a
// caller without read_all_ticket may see.
type Service struct {
	repo   Repository
	roles  rbac.RoleResolver
	policy *rbac.Policy
	now    func() time.Time
}

// NewService constructs a Service. A nil policy falls back to the default action table.
func NewService(repo Repository, roles rbac.RoleResolver, policy *rbac.Policy) *Service {
	if policy == nil {
		policy = rbac.NewPolicy(rbac.DefaultPolicies(), nil)
	}
	return &Service{repo: repo, roles: roles, policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

// SeesAll reports whether userID passes the read_all_ticket policy.
func (s *Service) SeesAll(ctx context.Context, userID int64) bool {
	return s.policy.CheckAction(userID, s.roles.UserRoleIDs(ctx, userID), rbac.ActionReadAllTicket)
}

// List returns the live tickets visible to userID.
func (s *Service) List(ctx context.Context, userID int64, filter ListFilter) ([]Ticket, error) {
	filter.Deleted = false
	return s.list(ctx, userID, filter)
}

// ListDeleted returns soft-deleted tickets visible to userID.
func (s *Service) ListDeleted(ctx context.Context, userID int64, filter ListFilter) ([]Ticket, error) {
	filter.Deleted = true
	return s.list(ctx, userID, filter)
}

// Export returns every live ticket visible to userID that matches filter.
func (s *Service) Export(ctx context.Context, userID int64, filter ListFilter) ([]Ticket, error) {
	filter.Deleted = false
	filter.Offset = 0
	filter.Limit = exportPageSize
	return s.scoped(ctx, userID, filter)
}

func (s *Service) list(ctx context.Context, userID int64, filter ListFilter) ([]Ticket, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, filter.Status)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultPageSize
	case filter.Limit > maxPageSize:
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.scoped(ctx, userID, filter)
}

func (s *Service) scoped(ctx context.Context, userID int64, filter ListFilter) ([]Ticket, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.VisibleTo = 0
	if !s.SeesAll(ctx, userID) {
		filter.VisibleTo = userID
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Ticket{}
	}
	return items, nil
}

// Get returns a live ticket when userID may see it.
func (s *Service) Get(ctx context.Context, userID, id int64) (Ticket, error) {
	t, err := s.visible(ctx, userID, id)
	if err != nil {
		return Ticket{}, err
	}
	if t.DeletedAt != nil {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

// Create opens a new ticket on behalf of userID.
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (Ticket, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Ticket{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.Priority == "" {
		input.Priority = PriorityNormal
	}
	return s.repo.Create(ctx, Ticket{
		Title:       input.Title,
		Description: input.Description,
		Status:      StatusOpen,
		Priority:    input.Priority,
		ProjectID:   input.ProjectID,
		CreatedBy:   userID,
	})
}

// Update edits a visible live ticket.
func (s *Service) Update(ctx context.Context, userID, id int64, input UpdateInput) (Ticket, error) {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return Ticket{}, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		input.Title = &title
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return Ticket{}, err
	}
	return s.mapNotFound(s.repo.Update(ctx, id, input))
}

// ChangeStatus moves a visible live ticket to status.
func (s *Service) ChangeStatus(ctx context.Context, userID, id int64, status Status) (Ticket, error) {
	if !status.Valid() {
		return Ticket{}, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return Ticket{}, err
	}
	return s.mapNotFound(s.repo.SetStatus(ctx, id, status))
}

// Assign sets or clears the assignee of a visible live ticket.
func (s *Service) Assign(ctx context.Context, userID, id int64, assigneeID *int64) (Ticket, error) {
	if assigneeID != nil && *assigneeID <= 0 {
		return Ticket{}, fmt.Errorf("%w: assignee id must be positive", ErrInvalidInput)
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return Ticket{}, err
	}
	return s.mapNotFound(s.repo.SetAssignee(ctx, id, assigneeID))
}

// Assignment reports the assignee of a visible live ticket.
func (s *Service) Assignment(ctx context.Context, userID, id int64) (Assignment, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{TicketID: t.ID, AssigneeID: t.AssigneeID, Status: t.Status}, nil
}

// Delete soft-deletes a visible live ticket.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return s.notFound(err)
	}
	return nil
}

// Restore undeletes a visible soft-deleted ticket.
func (s *Service) Restore(ctx context.Context, userID, id int64) (Ticket, error) {
	t, err := s.visible(ctx, userID, id)
	if err != nil {
		return Ticket{}, err
	}
	if t.DeletedAt == nil {
		return Ticket{}, ErrNotFound
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return Ticket{}, s.notFound(err)
	}
	t.DeletedAt = nil
	return t, nil
}

func (s *Service) visible(ctx context.Context, userID, id int64) (Ticket, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Ticket{}, s.notFound(err)
	}
	if !t.VisibleTo(userID) && !s.SeesAll(ctx, userID) {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) mapNotFound(t Ticket, err error) (Ticket, error) {
	if err != nil {
		return Ticket{}, s.notFound(err)
	}
	return t, nil
}

func (s *Service) notFound(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
