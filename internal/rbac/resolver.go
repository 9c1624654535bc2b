package rbac

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// lookupTimeout bounds a store lookup shared by coalesced callers.
const lookupTimeout = 5 * time.Second

// Recorder receives authorization telemetry. observability.Metrics implements it.
type Recorder interface {
	CacheLookup(hit bool)
	Decision(mode string, allowed bool)
}

// Resolver answers role lookups for users, serving repeated lookups from a Cache.
type Resolver struct {
	source   RoleSource
	cache    Cache
	logger   *slog.Logger
	recorder Recorder
	group    singleflight.Group
}

// NewResolver constructs a Resolver. A nil cache gets a MemoryCache with DefaultCacheTTL.
func NewResolver(source RoleSource, cache Cache, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache(DefaultCacheTTL)
	}
	return &Resolver{source: source, cache: cache, logger: logger}
}

// WithRecorder attaches a telemetry recorder.
func (r *Resolver) WithRecorder(rec Recorder) *Resolver {
	r.recorder = rec
	return r
}

// Cache exposes the resolver's cache.
func (r *Resolver) Cache() Cache {
	return r.cache
}

// UserPermissionInfo returns the user's resolved roles, or nil when the user holds no
// permissions. Persistence failures are logged and also yield nil.
func (r *Resolver) UserPermissionInfo(ctx context.Context, userID int64) *PermissionInfo {
	if info, ok := r.cache.Get(ctx, userID); ok {
		r.recordLookup(true)
		return info
	}
	r.recordLookup(false)

	ch := r.group.DoChan(strconv.FormatInt(userID, 10), func() (any, error) {
		// Detached from the first caller so its cancellation does not fail the other waiters.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		info, err := r.source.UserPermissionInfo(lookupCtx, userID)
		if err != nil {
			return nil, err
		}
		if info == nil || len(info.Roles) == 0 {
			return (*PermissionInfo)(nil), nil
		}
		r.cache.Put(lookupCtx, userID, info)
		return info, nil
	})

	select {
	case <-ctx.Done():
		r.logError("rbac resolve cancelled", userID, ctx.Err())
		return nil
	case res := <-ch:
		if res.Err != nil {
			r.logError("rbac resolve permission info", userID, res.Err)
			return nil
		}
		info, _ := res.Val.(*PermissionInfo)
		return info
	}
}

// UserRoleIDs returns the ids of roles currently assigned to the user.
func (r *Resolver) UserRoleIDs(ctx context.Context, userID int64) map[int64]struct{} {
	return r.UserPermissionInfo(ctx, userID).RoleIDs()
}

// UserRoleNames returns the names of roles currently assigned to the user.
func (r *Resolver) UserRoleNames(ctx context.Context, userID int64) map[string]struct{} {
	return r.UserPermissionInfo(ctx, userID).RoleNames()
}

func (r *Resolver) recordLookup(hit bool) {
	if r.recorder != nil {
		r.recorder.CacheLookup(hit)
	}
}

func (r *Resolver) logError(msg string, userID int64, err error) {
	if r.logger != nil {
		r.logger.Error(msg, slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
