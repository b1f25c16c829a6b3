package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/assistant/internal/model"
	"github.com/koopa0/assistant/internal/thread"
)

// ThreadHandler serves thread management endpoints.
type ThreadHandler struct {
	svc      *thread.Service
	registry *model.Registry
	logger   *slog.Logger
}

// NewThreadHandler creates the thread endpoints handler.
func NewThreadHandler(svc *thread.Service, registry *model.Registry, logger *slog.Logger) *ThreadHandler {
	return &ThreadHandler{svc: svc, registry: registry, logger: logger}
}

// RegisterRoutes registers the thread endpoints.
func (h *ThreadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.handleListModels)
	mux.HandleFunc("POST /api/threads", h.handleCreate)
	mux.HandleFunc("GET /api/threads/{id}", h.handleGet)
	mux.HandleFunc("POST /api/threads/{id}/cancel", h.handleCancel)
}

// userID extracts the authenticated user from the request. The header is
// set by the authenticating proxy; an empty value means the request never
// passed authentication.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// userRoles extracts the caller's role claims.
func userRoles(r *http.Request) []string {
	raw := r.Header.Get("X-User-Roles")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}

// modelResponse is the public view of a catalog entry.
type modelResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Allowed     bool   `json:"allowed"`
}

// handleListModels returns the model catalog annotated with what the
// caller may use.
func (h *ThreadHandler) handleListModels(w http.ResponseWriter, r *http.Request) {
	roles := userRoles(r)
	catalog := h.registry.All()
	out := make([]modelResponse, 0, len(catalog))
	for _, m := range catalog {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		out = append(out, modelResponse{ID: m.ID, DisplayName: name, Allowed: m.AllowedFor(roles)})
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

type createThreadRequest struct {
	Model string `json:"model"`
}

// handleCreate creates a thread. A model the caller may not use falls
// back to the default model rather than failing.
func (h *ThreadHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing X-User-ID", h.logger)
		return
	}

	var req createThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	t, err := h.svc.Create(r.Context(), user, req.Model, userRoles(r))
	if err != nil {
		h.logger.Error("creating thread failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create thread", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, t, h.logger)
}

// handleGet loads a thread with its histories.
func (h *ThreadHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing X-User-ID", h.logger)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "thread ID must be a UUID", h.logger)
		return
	}

	t, err := h.svc.Load(r.Context(), id, user)
	switch {
	case errors.Is(err, thread.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such thread", h.logger)
	case errors.Is(err, thread.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "thread belongs to another user", h.logger)
	case err != nil:
		h.logger.Error("loading thread failed", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load_failed", "could not load thread", h.logger)
	default:
		writeJSON(w, http.StatusOK, t, h.logger)
	}
}

// handleCancel stops the thread's running turn.
func (h *ThreadHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing X-User-ID", h.logger)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "thread ID must be a UUID", h.logger)
		return
	}

	// Ownership check before acting on the turn.
	if _, err := h.svc.Load(r.Context(), id, user); err != nil {
		switch {
		case errors.Is(err, thread.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "no such thread", h.logger)
		case errors.Is(err, thread.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", "thread belongs to another user", h.logger)
		default:
			writeError(w, http.StatusInternalServerError, "load_failed", "could not load thread", h.logger)
		}
		return
	}

	cancelled := h.svc.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled}, h.logger)
}
