package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/servicedesk/servicedesk/internal/platform/httpx"
	"github.com/servicedesk/servicedesk/internal/rbac"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      *rbac.Gate
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *rbac.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.gate.RequireAction(rbac.ActionReadUser)).Get("/", h.listUsers)
	r.With(h.gate.RequireAction(rbac.ActionCreateUser)).Post("/", h.createUser)
	r.With(h.gate.RequireAction(rbac.ActionReadUser)).Get("/{id}", h.getUser)
	r.With(h.gate.RequireAction(rbac.ActionUpdateUser)).Patch("/{id}", h.updateUser)
	r.With(h.gate.RequireAction(rbac.ActionDeleteUser)).Delete("/{id}", h.deleteUser)
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type updateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respondServiceError(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), CreateInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		h.respondServiceError(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateUserRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, UpdateInput{Email: req.Email, IsActive: req.IsActive})
	if err != nil {
		h.respondServiceError(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.respondServiceError(w, "delete user", err)
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
	case errors.Is(err, ErrInvalidInput):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, ErrDuplicate):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id", httpx.ErrValidation)
	}
	return id, nil
}
