package rbac

import (
	"context"
	"errors"
)

// ErrNotFound indicates that the requested user, role or assignment does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrInvalidRole indicates a role id outside the seeded role table.
var ErrInvalidRole = errors.New("rbac: invalid role")

// Service orchestrates role administration and permission queries.
type Service struct {
	store    Store
	resolver *Resolver
	policy   *Policy
}

// NewService constructs a Service.
func NewService(store Store, resolver *Resolver, policy *Policy) *Service {
	return &Service{store: store, resolver: resolver, policy: policy}
}

// ListRoles returns all roles ordered by id.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// AssignRole grants a role to a user. Cached permission info is left untouched, so the
// change becomes visible to the gate once the cached entry expires.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	if userID <= 0 || roleID <= 0 {
		return ErrInvalidRole
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

// RemoveRole revokes a role from a user. Like AssignRole it does not touch the cache.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.store.RemoveRole(ctx, userID, roleID)
}

// SetUserRoles replaces a user's role set.
func (s *Service) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	seen := make(map[int64]struct{}, len(roleIDs))
	unique := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id <= 0 {
			return ErrInvalidRole
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return s.store.SetUserRoles(ctx, userID, unique)
}

// Permissions returns the resolved roles of a user, or nil when the user holds none.
func (s *Service) Permissions(ctx context.Context, userID int64) *PermissionInfo {
	return s.resolver.UserPermissionInfo(ctx, userID)
}

// Check evaluates actions for a user the same way the gate does.
func (s *Service) Check(ctx context.Context, userID int64, actions []Action, logic Logic) bool {
	return s.policy.CheckActions(userID, s.resolver.UserRoleIDs(ctx, userID), actions, logic)
}

// Policy exposes the action table.
func (s *Service) Policy() *Policy {
	return s.policy
}
