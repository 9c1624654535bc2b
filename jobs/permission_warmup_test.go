package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/servicedesk/servicedesk/internal/jobs"
	"github.com/servicedesk/servicedesk/internal/rbac"
)

type stubSource struct {
	users   []int64
	infos   map[int64]*rbac.PermissionInfo
	listErr error
	infoErr error
	limit   int
}

func (s *stubSource) RecentUserIDs(_ context.Context, limit int) ([]int64, error) {
	s.limit = limit
	return s.users, s.listErr
}

func (s *stubSource) UserPermissionInfo(_ context.Context, userID int64) (*rbac.PermissionInfo, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return s.infos[userID], nil
}

func newTestJob(source WarmupSource, cache rbac.Cache) *PermissionWarmupJob {
	return NewPermissionWarmupJob(source, cache, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
}

func TestPermissionWarmupCachesUsersWithRoles(t *testing.T) {
	source := &stubSource{
		users: []int64{1, 2},
		infos: map[int64]*rbac.PermissionInfo{
			1: {UserID: 1, Username: "agent", Roles: []rbac.RoleRef{{RoleID: 2, RoleName: "read_ticket"}}},
		},
	}
	cache := rbac.NewMemoryCache(time.Minute)
	cache.Put(context.Background(), 2, &rbac.PermissionInfo{UserID: 2, Roles: []rbac.RoleRef{{RoleID: 1}}})
	job := newTestJob(source, cache)

	task, err := NewPermissionWarmupTask(PermissionWarmupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, DefaultWarmupLimit, source.limit)
	info, ok := cache.Get(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "agent", info.Username)
	_, ok = cache.Get(context.Background(), 2)
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())
}

func TestPermissionWarmupDropsUsersWithoutPermissions(t *testing.T) {
	ctx := context.Background()
	// 7 lost every role, 8 was disabled; both resolve to nil but were cached earlier.
	source := &stubSource{users: []int64{7, 8}, infos: map[int64]*rbac.PermissionInfo{}}
	cache := rbac.NewMemoryCache(time.Minute)
	for _, id := range source.users {
		cache.Put(ctx, id, &rbac.PermissionInfo{UserID: id, Roles: []rbac.RoleRef{{RoleID: rbac.RoleReadTicket}}})
	}
	job := newTestJob(source, cache)

	require.NoError(t, job.Handle(ctx, asynq.NewTask(TaskPermissionWarmup, nil)))
	assert.Zero(t, cache.Len())
}

func TestPermissionWarmupHonoursLimit(t *testing.T) {
	source := &stubSource{}
	job := newTestJob(source, rbac.NewMemoryCache(time.Minute))

	task, err := NewPermissionWarmupTask(PermissionWarmupPayload{Limit: 25})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 25, source.limit)
}

func TestPermissionWarmupPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	job := newTestJob(&stubSource{listErr: boom}, rbac.NewMemoryCache(time.Minute))
	err := job.Handle(context.Background(), asynq.NewTask(TaskPermissionWarmup, nil))
	assert.ErrorIs(t, err, boom)

	job = newTestJob(&stubSource{users: []int64{3}, infoErr: boom}, rbac.NewMemoryCache(time.Minute))
	err = job.Handle(context.Background(), asynq.NewTask(TaskPermissionWarmup, nil))
	assert.ErrorIs(t, err, boom)
}

func TestPermissionWarmupRejectsBadPayload(t *testing.T) {
	job := newTestJob(&stubSource{}, rbac.NewMemoryCache(time.Minute))
	err := job.Handle(context.Background(), asynq.NewTask(TaskPermissionWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPermissionWarmupRequiresDependencies(t *testing.T) {
	var job *PermissionWarmupJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskPermissionWarmup, nil)))
	assert.Error(t, (&PermissionWarmupJob{}).Handle(context.Background(), asynq.NewTask(TaskPermissionWarmup, nil)))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestJobsHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue info", inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, status: http.StatusOK, pending: 4},
		{name: "inspector error", inspector: stubInspector{err: errors.New("redis down")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}
