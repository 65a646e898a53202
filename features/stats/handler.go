// Package stats reports index health: how many notes the source holds, how
// many chunks the index carries and how far the sync loop has caught up.
package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/blacktokki/notesearcher/internal/middleware"
)

type NoteCounter interface {
	CountNotes(ctx context.Context) (int, error)
}

type ChunkCounter interface {
	CountChunks(ctx context.Context) (int, error)
}

type WatermarkReader interface {
	Get(ctx context.Context) (time.Time, error)
}

type Handler struct {
	notes     NoteCounter
	index     ChunkCounter
	watermark WatermarkReader
}

func NewHandler(n NoteCounter, c ChunkCounter, w WatermarkReader) *Handler {
	return &Handler{notes: n, index: c, watermark: w}
}

type StatsResponse struct {
	Notes     int    `json:"notes"`
	Chunks    int    `json:"chunks"`
	Watermark string `json:"watermark"` // empty until the first full sync cycle
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	noteCount, err := h.notes.CountNotes(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count notes", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count notes", http.StatusInternalServerError)
		return
	}

	chunkCount, err := h.index.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	mark, err := h.watermark.Get(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read watermark", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to read watermark", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{Notes: noteCount, Chunks: chunkCount}
	if !mark.IsZero() {
		resp.Watermark = mark.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
