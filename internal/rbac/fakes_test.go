package rbac

import (
	"context"
	"sync"
	"time"
)

type fakeStore struct {
	mu       sync.Mutex
	infos    map[int64]*PermissionInfo
	calls    map[int64]int
	err      error
	roles    []Role
	assigned map[int64][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		infos:    make(map[int64]*PermissionInfo),
		calls:    make(map[int64]int),
		assigned: make(map[int64][]int64),
	}
}

func (f *fakeStore) grant(userID int64, username string, roles ...RoleRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[userID] = &PermissionInfo{UserID: userID, Username: username, Roles: roles}
}

func (f *fakeStore) callCount(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[userID]
}

func (f *fakeStore) UserPermissionInfo(_ context.Context, userID int64) (*PermissionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[userID]++
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[userID]
	if !ok {
		return nil, nil
	}
	cp := *info
	cp.Roles = append([]RoleRef(nil), info.Roles...)
	return &cp, nil
}

func (f *fakeStore) ListRoles(context.Context) ([]Role, error) {
	return f.roles, f.err
}

func (f *fakeStore) AssignRole(_ context.Context, userID, roleID int64) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned[userID] = append(f.assigned[userID], roleID)
	return nil
}

func (f *fakeStore) RemoveRole(_ context.Context, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles := f.assigned[userID]
	for i, id := range roles {
		if id == roleID {
			f.assigned[userID] = append(roles[:i], roles[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) SetUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned[userID] = append([]int64(nil), roleIDs...)
	return nil
}

func (f *fakeStore) RecentUserIDs(context.Context, int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.infos))
	for id := range f.infos {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingRecorder struct {
	mu        sync.Mutex
	hits      int
	misses    int
	decisions map[string]int
}

func (r *countingRecorder) CacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) Decision(mode string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decisions == nil {
		r.decisions = make(map[string]int)
	}
	key := mode + ":deny"
	if allowed {
		key = mode + ":allow"
	}
	r.decisions[key]++
}
