package rbac

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/servicedesk/servicedesk/internal/platform/httpx"
)

// Handler exposes permission queries and role administration over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      *Gate
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountPermissionRoutes registers /permissions routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/actions", h.listActions)
	r.Post("/check", h.check)
}

// MountRoleRoutes registers /roles routes.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	r.With(h.gate.Require(Requirement{Actions: []Action{ActionReadUser, ActionUpdateUser}, Logic: LogicOR})).
		Get("/", h.listRoles)
}

// MountUserRoleRoutes registers /users/{id}/roles and /users/{id}/permissions routes.
func (h *Handler) MountUserRoleRoutes(r chi.Router) {
	r.With(h.gate.Require(Requirement{Roles: []int64{RoleReadUser, RoleUpdateUser}, AllowOwner: true})).
		Get("/{id}/permissions", h.userPermissions)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAction(ActionUpdateUser))
		r.Put("/{id}/roles", h.setUserRoles)
		r.Post("/{id}/roles", h.assignRole)
		r.Delete("/{id}/roles/{roleID}", h.removeRole)
	})
}

type permissionsResponse struct {
	UserID    int64    `json:"user_id"`
	Username  string   `json:"username,omitempty"`
	RoleIDs   []int64  `json:"role_ids"`
	RoleNames []string `json:"role_names"`
}

type actionResponse struct {
	Action string  `json:"action"`
	Roles  []int64 `json:"roles"`
}

type checkRequest struct {
	Actions []string `json:"actions" validate:"required,min=1,dive,required"`
	Logic   string   `json:"logic" validate:"omitempty,oneof=OR AND or and"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

type setRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"dive,gt=0"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := CallerID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionsResponse(userID, h.service.Permissions(r.Context(), userID)))
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionsResponse(userID, h.service.Permissions(r.Context(), userID)))
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	policy := h.service.Policy()
	actions := policy.Actions()
	out := make([]actionResponse, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionResponse{Action: string(a), Roles: policy.RequiredRoles(a)})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	userID, ok := CallerID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req checkRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actions := make([]Action, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = Action(a)
	}
	allowed := h.service.Check(r.Context(), userID, actions, ParseLogic(req.Logic))
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req assignRoleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		h.respondServiceError(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setRolesRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.SetUserRoles(r.Context(), userID, req.RoleIDs); err != nil {
		h.respondServiceError(w, "set user roles", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		h.respondServiceError(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if err := h.validator.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, ErrInvalidRole):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", httpx.ErrValidation, key)
	}
	return id, nil
}

func toPermissionsResponse(userID int64, info *PermissionInfo) permissionsResponse {
	resp := permissionsResponse{UserID: userID, RoleIDs: []int64{}, RoleNames: []string{}}
	if info == nil {
		return resp
	}
	resp.Username = info.Username
	for _, role := range info.Roles {
		resp.RoleIDs = append(resp.RoleIDs, role.RoleID)
		resp.RoleNames = append(resp.RoleNames, role.RoleName)
	}
	sort.Slice(resp.RoleIDs, func(i, j int) bool { return resp.RoleIDs[i] < resp.RoleIDs[j] })
	sort.Strings(resp.RoleNames)
	return resp
}
