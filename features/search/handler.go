package search

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

type Searcher interface {
	Search(ctx context.Context, q Query) (*Response, error)
}

type Handler struct {
	service Searcher
}

func NewHandler(s Searcher) *Handler {
	return &Handler{service: s}
}

// Search handles GET /search. The owner scope comes from the authenticated
// context, never from the query string.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	q := Query{
		OwnerID:         auth.OwnerID(ctx),
		Text:            params.Get("query"),
		Exact:           params.Get("exact") == "true",
		IncludeHidden:   params.Get("withHidden") == "true",
		IncludeExternal: params.Get("withExternal") == "true",
	}

	var err error
	if raw := params.Get("page"); raw != "" {
		if q.Page, err = strconv.Atoi(raw); err != nil {
			h.writeError(ctx, w, apperr.Validation("page", "must be an integer"))
			return
		}
	}
	if raw := params.Get("size"); raw != "" {
		if q.PageSize, err = strconv.Atoi(raw); err != nil {
			h.writeError(ctx, w, apperr.Validation("size", "must be an integer"))
			return
		}
	}

	result, err := h.service.Search(ctx, q)
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
	slog.ErrorContext(ctx, "search request failed", "code", code, "error", err)

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
