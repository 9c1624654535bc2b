package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/servicedesk/servicedesk/internal/jobs"
	"github.com/servicedesk/servicedesk/internal/rbac"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WarmupSource is the subset of the role store used by the warmup job.
type WarmupSource interface {
	rbac.RoleSource
	RecentUserIDs(ctx context.Context, limit int) ([]int64, error)
}

// PermissionWarmupJob resolves permission info for recently updated users and
// writes it into the shared permission cache.
type PermissionWarmupJob struct {
	Source  WarmupSource
	Cache   rbac.Cache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewPermissionWarmupJob wires dependencies for the warmup handler.
func NewPermissionWarmupJob(source WarmupSource, cache rbac.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *PermissionWarmupJob {
	return &PermissionWarmupJob{
		Source:  source,
		Cache:   cache,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes permission warmup tasks.
func (j *PermissionWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil || j.Cache == nil {
		return errors.New("permission warmup: handler not configured")
	}
	var payload PermissionWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = DefaultWarmupLimit
	}

	tracker := j.metrics().Track(TaskPermissionWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("limit", payload.Limit))
	started := j.now()

	userIDs, err := j.Source.RecentUserIDs(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("load warmup users", slog.Any("error", err))
		return resultErr
	}
	if len(userIDs) == 0 {
		logger.Info("no users to warm")
		return resultErr
	}

	cached, empty := 0, 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			resultErr = err
			return resultErr
		}
		info, err := j.Source.UserPermissionInfo(ctx, userID)
		if err != nil {
			resultErr = err
			logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
			return resultErr
		}
		if info == nil || len(info.Roles) == 0 {
			// Users that lost every role keep no entry.
			j.Cache.Invalidate(ctx, userID)
			empty++
			continue
		}
		j.Cache.Put(ctx, userID, info)
		cached++
	}
	j.metrics().AddWarmed(true, cached)
	j.metrics().AddWarmed(false, empty)

	logger.Info("completed permission warmup", slog.Int("cached", cached), slog.Int("empty", empty), slog.Duration("duration", j.now().Sub(started)))
	return resultErr
}

func (j *PermissionWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPermissionWarmup))
	}
	return slog.Default().With(slog.String("job", TaskPermissionWarmup))
}

func (j *PermissionWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PermissionWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
