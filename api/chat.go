package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koopa0/assistant/internal/thread"
)

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	svc          *thread.Service
	systemPrompt string
	logger       *slog.Logger
}

// NewChatHandler creates the chat endpoint handler.
func NewChatHandler(svc *thread.Service, systemPrompt string, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, systemPrompt: systemPrompt, logger: logger}
}

// RegisterRoutes registers the chat endpoint.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/threads/{id}/chat/stream", h.handleStream)
}

// chatRequest is the streaming chat request body.
type chatRequest struct {
	Message string           `json:"message"`
	Files   []fileAttachment `json:"files,omitempty"`
}

// fileAttachment is one uploaded file. Data carries base64 content;
// URL references a remote image instead.
type fileAttachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// block converts the attachment to a message content block.
func (f fileAttachment) block() thread.Block {
	kind := thread.BlockFile
	if strings.HasPrefix(f.MediaType, "image/") {
		kind = thread.BlockImage
	}
	return thread.Block{
		Type:      kind,
		Name:      f.Name,
		MediaType: f.MediaType,
		Data:      f.Data,
		URL:       f.URL,
	}
}

// handleStream runs one turn on the thread and streams its chunks as
// Server-Sent Events. Each chunk arrives as an "event: chunk" with a
// JSON body; a final "event: done" marks the end of the turn. The
// request context is the turn context, so a client disconnect cancels
// generation and the partial state is persisted.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
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

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message must not be empty", h.logger)
		return
	}

	t, err := h.svc.Load(r.Context(), id, user)
	switch {
	case errors.Is(err, thread.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such thread", h.logger)
		return
	case errors.Is(err, thread.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "thread belongs to another user", h.logger)
		return
	case err != nil:
		h.logger.Error("loading thread failed", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load_failed", "could not load thread", h.logger)
		return
	}

	files := make([]thread.Block, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, f.block())
	}

	chunks, err := h.svc.RunTurn(r.Context(), t, thread.TurnRequest{
		Message: thread.UserMessage(req.Message),
		Files:   files,
		System:  h.systemPrompt,
	})
	switch {
	case errors.Is(err, thread.ErrTurnInProgress):
		writeError(w, http.StatusConflict, "turn_in_progress", "a turn is already running on this thread", h.logger)
		return
	case err != nil:
		h.logger.Error("starting turn failed", "thread_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "turn_failed", "could not start turn", h.logger)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		// The channel must be drained even when streaming cannot start.
		for range chunks {
		}
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", err.Error(), h.logger)
		return
	}

	for c := range chunks {
		if err := sse.writeJSONEvent("chunk", c); err != nil {
			// Client gone. Cancelling the request context already stopped
			// generation; drain what remains so the turn can settle.
			h.logger.Debug("chunk write failed, draining", "thread_id", id, "error", err)
			for range chunks {
			}
			return
		}
	}

	if err := sse.writeEvent("done", "{}"); err != nil {
		h.logger.Debug("done event write failed", "thread_id", id, "error", err)
	}
}
