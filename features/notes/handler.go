package notes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/blacktokki/notesearcher/internal/apperr"
	"github.com/blacktokki/notesearcher/internal/auth"
	"github.com/blacktokki/notesearcher/internal/middleware"
)

// StoreFactory builds a document store bound to the caller's credential.
type StoreFactory func(authHeader string) DocumentStore

type Handler struct {
	service *Service
	store   StoreFactory
}

func NewHandler(s *Service, store StoreFactory) *Handler {
	return &Handler{service: s, store: store}
}

type writeRequest struct {
	Title       string `json:"title"`
	ContentHTML string `json:"contentHtml"`
}

// Write handles POST /notes: create-or-overwrite by title.
func (h *Handler) Write(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, apperr.Validation("body", "malformed JSON"))
		return
	}

	result, err := h.service.Write(ctx, h.store(auth.Authorization(ctx)), req.Title, req.ContentHTML)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, result)
}

type renameRequest struct {
	OldTitle string `json:"oldTitle"`
	NewTitle string `json:"newTitle"`
}

// Rename handles POST /notes/rename.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, apperr.Validation("body", "malformed JSON"))
		return
	}

	result, err := h.service.Rename(ctx, h.store(auth.Authorization(ctx)), req.OldTitle, req.NewTitle)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, result)
}

// List handles GET /notes?keyword=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.List(ctx, h.store(auth.Authorization(ctx)), r.URL.Query().Get("keyword"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, result)
}

// Boards handles GET /boards.
func (h *Handler) Boards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Boards(ctx, h.store(auth.Authorization(ctx)))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, result)
}

func (h *Handler) writeData(ctx context.Context, w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code, status := apperr.CodeOf(err)
	slog.ErrorContext(ctx, "note request failed", "code", code, "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": err.Error(),
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
