package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

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

// Resolve handles GET /history?title=...&page=N.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	page := 0
	if raw := params.Get("page"); raw != "" {
		var err error
		if page, err = strconv.Atoi(raw); err != nil {
			h.writeError(ctx, w, apperr.Validation("page", "must be an integer"))
			return
		}
	}

	store := h.store(auth.Authorization(ctx))
	result, err := h.service.Resolve(ctx, store, params.Get("title"), page)
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
	slog.ErrorContext(ctx, "history request failed", "code", code, "error", err)

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
