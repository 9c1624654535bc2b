package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/servicedesk/servicedesk/internal/platform/httpx"
	"github.com/servicedesk/servicedesk/internal/shared"
)

// identityClaims lists the claim keys holding the caller id, highest precedence first.
var identityClaims = []string{"id", "sub", "userId", "user_id"}

// Requirement declares what a route demands of its caller. At most one mode applies:
// Action first, then Actions, then Roles.
type Requirement struct {
	Action     Action
	Actions    []Action
	Logic      Logic
	Roles      []int64
	AllowOwner bool
}

// IsZero reports whether the requirement declares nothing.
func (r Requirement) IsZero() bool {
	return r.Action == "" && len(r.Actions) == 0 && len(r.Roles) == 0
}

// OwnershipChecker decides whether the caller owns the resource addressed by a request.
type OwnershipChecker interface {
	IsOwner(ctx context.Context, userID int64, resourceID string) (bool, error)
}

// OwnershipFunc adapts a function to OwnershipChecker.
type OwnershipFunc func(ctx context.Context, userID int64, resourceID string) (bool, error)

// IsOwner calls f.
func (f OwnershipFunc) IsOwner(ctx context.Context, userID int64, resourceID string) (bool, error) {
	return f(ctx, userID, resourceID)
}

// denyOwnership is the default checker: resource ownership is not modelled yet.
var denyOwnership = OwnershipFunc(func(context.Context, int64, string) (bool, error) {
	return false, nil
})

// RoleResolver loads the role ids of a user.
type RoleResolver interface {
	UserRoleIDs(ctx context.Context, userID int64) map[int64]struct{}
}

// Gate turns a Requirement into an allow/deny decision for an inbound request.
type Gate struct {
	resolver RoleResolver
	policy   *Policy
	owners   OwnershipChecker
	logger   *slog.Logger
	recorder Recorder
}

// NewGate constructs a Gate.
func NewGate(resolver RoleResolver, policy *Policy, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{resolver: resolver, policy: policy, owners: denyOwnership, logger: logger}
}

// WithOwnership replaces the ownership checker used by AllowOwner requirements.
func (g *Gate) WithOwnership(checker OwnershipChecker) *Gate {
	if checker != nil {
		g.owners = checker
	}
	return g
}

// WithRecorder attaches a telemetry recorder.
func (g *Gate) WithRecorder(rec Recorder) *Gate {
	g.recorder = rec
	return g
}

// Allow evaluates req for r. It never panics and never returns an error: any failure denies.
func (g *Gate) Allow(r *http.Request, req Requirement) (allowed bool) {
	if req.IsZero() {
		g.record("none", true)
		return true
	}
	start := time.Now()
	mode := "action"
	defer func() {
		if rec := recover(); rec != nil {
			allowed = false
			g.logger.Error("rbac gate panic",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
				slog.Duration("elapsed", time.Since(start)))
		}
		g.record(mode, allowed)
	}()

	ctx := r.Context()
	userID, ok := UserIDFromClaims(shared.ClaimsFromContext(ctx))
	if !ok {
		g.debug("rbac deny: no caller identity", r, req)
		return false
	}
	roleIDs := g.resolver.UserRoleIDs(ctx, userID)

	switch {
	case req.Action != "":
		allowed = g.policy.CheckAction(userID, roleIDs, req.Action)
	case len(req.Actions) > 0:
		mode = "actions"
		logic, ok := req.Logic.Normalize()
		if !ok {
			g.logger.Error("rbac deny: unknown logic",
				slog.String("logic", string(req.Logic)),
				slog.String("path", r.URL.Path))
			return false
		}
		allowed = g.policy.CheckActions(userID, roleIDs, req.Actions, logic)
	default:
		mode = "roles"
		allowed = g.policy.CheckRoles(roleIDs, req.Roles)
		if !allowed && req.AllowOwner {
			mode = "owner"
			allowed = g.checkOwner(ctx, r, userID)
		}
	}
	if !allowed {
		g.debug("rbac deny", r, req, slog.Int64("user_id", userID))
	}
	return allowed
}

// Require wraps a handler so it only runs when req is satisfied. Denials answer 403.
func (g *Gate) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.Allow(r, req) {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAction is shorthand for Require(Requirement{Action: action}).
func (g *Gate) RequireAction(action Action) func(http.Handler) http.Handler {
	return g.Require(Requirement{Action: action})
}

func (g *Gate) checkOwner(ctx context.Context, r *http.Request, userID int64) bool {
	resourceID := ResourceID(r)
	if resourceID == "" {
		return false
	}
	owner, err := g.owners.IsOwner(ctx, userID, resourceID)
	if err != nil {
		g.logger.Error("rbac ownership check", slog.String("resource_id", resourceID), slog.Any("error", err))
		return false
	}
	return owner
}

func (g *Gate) record(mode string, allowed bool) {
	if g.recorder != nil {
		g.recorder.Decision(mode, allowed)
	}
}

func (g *Gate) debug(msg string, r *http.Request, req Requirement, attrs ...any) {
	attrs = append(attrs,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("requirement", req.String()))
	g.logger.Debug(msg, attrs...)
}

// String renders the requirement for logs.
func (r Requirement) String() string {
	switch {
	case r.Action != "":
		return "action=" + string(r.Action)
	case len(r.Actions) > 0:
		names := make([]string, len(r.Actions))
		for i, a := range r.Actions {
			names[i] = string(a)
		}
		logic := r.Logic
		if logic == "" {
			logic = LogicOR
		}
		return fmt.Sprintf("actions=%s logic=%s", strings.Join(names, ","), logic)
	case len(r.Roles) > 0:
		return fmt.Sprintf("roles=%v allow_owner=%t", r.Roles, r.AllowOwner)
	default:
		return "none"
	}
}

// CallerID returns the numeric id of the authenticated caller.
func CallerID(ctx context.Context) (int64, bool) {
	return UserIDFromClaims(shared.ClaimsFromContext(ctx))
}

// UserIDFromClaims extracts the caller id from claims, trying id, sub, userId and user_id
// in that order. Empty values fall through to the next key. Non-numeric ids are rejected.
func UserIDFromClaims(claims shared.Claims) (int64, bool) {
	if claims == nil {
		return 0, false
	}
	for _, key := range identityClaims {
		raw, ok := claims[key]
		if !ok || isEmptyIdentity(raw) {
			continue
		}
		return coerceUserID(raw)
	}
	return 0, false
}

func isEmptyIdentity(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case json.Number:
		return t == "" || t == "0"
	}
	return false
}

func coerceUserID(v any) (int64, bool) {
	switch t := v.(type) {
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return id, err == nil
	case json.Number:
		id, err := t.Int64()
		return id, err == nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) || math.Abs(t) >= math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}

// ResourceID returns the {id} route parameter, falling back to the last numeric path segment.
func ResourceID(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if _, err := strconv.ParseInt(segments[i], 10, 64); err == nil {
			return segments[i]
		}
	}
	return ""
}
