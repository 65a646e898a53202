package card

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

type moveRequest struct {
	SourceTitle string `json:"sourceTitle"`
	TargetTitle string `json:"targetTitle"`
	Heading     string `json:"heading"`
}

// Move handles POST /cards/move.
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, apperr.Validation("body", "malformed JSON"))
		return
	}

	store := h.store(auth.Authorization(ctx))
	result, err := h.service.Move(ctx, store, req.SourceTitle, req.TargetTitle, req.Heading)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code, status := apperr.CodeOf(err)
	slog.ErrorContext(ctx, "relocation request failed", "code", code, "error", err)

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
