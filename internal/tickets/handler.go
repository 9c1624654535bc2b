package tickets

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

// Handler exposes ticket endpoints guarded by the authorization gate.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      *rbac.Gate
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *rbac.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountRoutes registers /tickets routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.gate.RequireAction(rbac.ActionReadTicket)).Get("/", h.list)
	r.With(h.gate.RequireAction(rbac.ActionReadTicket)).Get("/export.csv", h.exportCSV)
	r.With(h.gate.RequireAction(rbac.ActionViewDeletedTicket)).Get("/deleted", h.listDeleted)
	r.With(h.gate.RequireAction(rbac.ActionCreateTicket)).Post("/", h.create)

	r.Route("/{id}", func(r chi.Router) {
		r.With(h.gate.RequireAction(rbac.ActionReadTicket)).Get("/", h.get)
		r.With(h.gate.RequireAction(rbac.ActionUpdateTicket)).Put("/", h.update)
		r.With(h.gate.RequireAction(rbac.ActionDeleteTicket)).Delete("/", h.delete)
		r.With(h.gate.RequireAction(rbac.ActionRestoreTicket)).Post("/restore", h.restore)
		r.With(h.gate.RequireAction(rbac.ActionChangeStatus)).Patch("/status", h.changeStatus)
		r.With(h.gate.RequireAction(rbac.ActionAssignTicket)).Put("/assignee", h.assign)
		r.With(h.gate.Require(rbac.Requirement{
			Actions: []rbac.Action{rbac.ActionGetAssignment, rbac.ActionSolveProblem},
			Logic:   rbac.LogicOR,
		})).Get("/assignment", h.assignment)
	})
}

type createRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ProjectID   *int64 `json:"project_id" validate:"omitempty,gt=0"`
}

type updateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ProjectID   *int64  `json:"project_id" validate:"omitempty,gt=0"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

type assignRequest struct {
	AssigneeID *int64 `json:"assignee_id" validate:"omitempty,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		h.respondServiceError(w, "list tickets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) listDeleted(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListDeleted(r.Context(), userID, filter)
	if err != nil {
		h.respondServiceError(w, "list deleted tickets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Export(r.Context(), userID, filter)
	if err != nil {
		h.respondServiceError(w, "export tickets", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tickets.csv"`)
	if err := WriteCSV(w, items); err != nil {
		h.logger.Error("write tickets csv", slog.Any("error", err))
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Create(r.Context(), userID, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    Priority(req.Priority),
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		h.respondServiceError(w, "create ticket", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		h.respondServiceError(w, "get ticket", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := UpdateInput{Title: req.Title, Description: req.Description, ProjectID: req.ProjectID}
	if req.Priority != nil {
		p := Priority(*req.Priority)
		input.Priority = &p
	}
	t, err := h.service.Update(r.Context(), userID, id, input)
	if err != nil {
		h.respondServiceError(w, "update ticket", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.ChangeStatus(r.Context(), userID, id, Status(req.Status))
	if err != nil {
		h.respondServiceError(w, "change ticket status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Assign(r.Context(), userID, id, req.AssigneeID)
	if err != nil {
		h.respondServiceError(w, "assign ticket", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) assignment(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Assignment(r.Context(), userID, id)
	if err != nil {
		h.respondServiceError(w, "get ticket assignment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.respondServiceError(w, "delete ticket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Restore(r.Context(), userID, id)
	if err != nil {
		h.respondServiceError(w, "restore ticket", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := rbac.CallerID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}

func (h *Handler) callerAndID(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := h.caller(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid ticket id", httpx.ErrValidation))
		return 0, 0, false
	}
	return userID, id, true
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
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status")), Search: q.Get("q")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ListFilter{}, fmt.Errorf("%w: invalid limit", httpx.ErrValidation)
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ListFilter{}, fmt.Errorf("%w: invalid offset", httpx.ErrValidation)
		}
		filter.Offset = n
	}
	return filter, nil
}
