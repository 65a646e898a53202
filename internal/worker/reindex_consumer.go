// Package worker hosts the NSQ consumers. The reindex consumer serves
// targeted invalidation: anything that mutates a note out of band publishes
// the note id here instead of waiting for the polling loop to notice.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/blacktokki/notesearcher/internal/middleware"
	"github.com/blacktokki/notesearcher/internal/note"
)

// ReindexPayload is the body published to the note.reindex topic.
type ReindexPayload struct {
	NoteID        int64  `json:"noteId"`
	CorrelationID string `json:"correlationId,omitempty"`
}

type DocumentGetter interface {
	Get(ctx context.Context, id int64) (*note.Document, error)
}

type Indexer interface {
	IndexDocument(ctx context.Context, doc note.Document) (int, error)
	Deindex(ctx context.Context, originalID int64) error
}

type ReindexConsumer struct {
	notes   DocumentGetter
	indexer Indexer
}

func NewReindexConsumer(notes DocumentGetter, ix Indexer) *ReindexConsumer {
	return &ReindexConsumer{notes: notes, indexer: ix}
}

func (h *ReindexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload ReindexPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.NoteID == 0 {
		slog.Error("poison pill: missing note id")
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	doc, err := h.notes.Get(ctx, payload.NoteID)
	if errors.Is(err, sql.ErrNoRows) {
		// Source row is gone; drop whatever the index still holds.
		slog.InfoContext(ctx, "note gone, deindexing", "note_id", payload.NoteID)
		return h.indexer.Deindex(ctx, payload.NoteID)
	}
	if err != nil {
		slog.ErrorContext(ctx, "note lookup failed", "error", err, "note_id", payload.NoteID)
		return err // Retry
	}
	if doc.Kind != note.KindNote {
		slog.WarnContext(ctx, "reindex requested for non-note content, dropping",
			"note_id", payload.NoteID, "kind", doc.Kind)
		return nil
	}

	n, err := h.indexer.IndexDocument(ctx, *doc)
	if err != nil {
		slog.ErrorContext(ctx, "reindex failed", "error", err, "note_id", payload.NoteID)
		return err // Retry
	}

	slog.InfoContext(ctx, "note reindexed", "note_id", payload.NoteID, "chunks", n)
	return nil
}
