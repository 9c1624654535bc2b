package tickets

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/servicedesk/servicedesk/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Ticket
	lists  []ListFilter
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Ticket)}
}

func (m *memoryRepo) seed(t Ticket) Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	if t.Reference == uuid.Nil {
		t.Reference = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	t.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(t.ID) * time.Minute)
	t.UpdatedAt = t.CreatedAt
	m.items[t.ID] = t
	return t
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, filter)
	var out []Ticket
	for _, t := range m.items {
		if (t.DeletedAt != nil) != filter.Deleted {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.VisibleTo > 0 && !t.VisibleTo(filter.VisibleTo) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok {
		return Ticket{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) Create(_ context.Context, t Ticket) (Ticket, error) {
	return m.seed(t), nil
}

func (m *memoryRepo) live(id int64) (Ticket, bool) {
	t, ok := m.items[id]
	return t, ok && t.DeletedAt == nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, input UpdateInput) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(id)
	if !ok {
		return Ticket{}, shared.ErrNotFound
	}
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Priority != nil {
		t.Priority = *input.Priority
	}
	if input.ProjectID != nil {
		t.ProjectID = input.ProjectID
	}
	m.items[id] = t
	return t, nil
}

func (m *memoryRepo) SetStatus(_ context.Context, id int64, status Status) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(id)
	if !ok {
		return Ticket{}, shared.ErrNotFound
	}
	t.Status = status
	m.items[id] = t
	return t, nil
}

func (m *memoryRepo) SetAssignee(_ context.Context, id int64, assigneeID *int64) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(id)
	if !ok {
		return Ticket{}, shared.ErrNotFound
	}
	t.AssigneeID = assigneeID
	m.items[id] = t
	return t, nil
}

func (m *memoryRepo) SoftDelete(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(id)
	if !ok {
		return shared.ErrNotFound
	}
	t.DeletedAt = &at
	m.items[id] = t
	return nil
}

func (m *memoryRepo) Restore(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.DeletedAt == nil {
		return shared.ErrNotFound
	}
	t.DeletedAt = nil
	m.items[id] = t
	return nil
}

// staticRoles resolves role ids from a fixed table.
type staticRoles map[int64][]int64

func (s staticRoles) UserRoleIDs(_ context.Context, userID int64) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, id := range s[userID] {
		out[id] = struct{}{}
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }
