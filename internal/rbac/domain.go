package rbac

import "time"

// Role represents a named permission bucket.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// RoleRef is the role portion of a resolved permission lookup.
type RoleRef struct {
	RoleID   int64  `json:"role_id"`
	RoleName string `json:"role_name"`
}

// PermissionInfo is the resolved role set of a single user.
type PermissionInfo struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Roles    []RoleRef `json:"roles"`
}

// RoleIDs returns the role ids as a set.
func (p *PermissionInfo) RoleIDs() map[int64]struct{} {
	ids := make(map[int64]struct{})
	if p == nil {
		return ids
	}
	for _, r := range p.Roles {
		ids[r.RoleID] = struct{}{}
	}
	return ids
}

// RoleNames returns the role names as a set.
func (p *PermissionInfo) RoleNames() map[string]struct{} {
	names := make(map[string]struct{})
	if p == nil {
		return names
	}
	for _, r := range p.Roles {
		names[r.RoleName] = struct{}{}
	}
	return names
}
