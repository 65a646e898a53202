package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blacktokki/notesearcher/internal/middleware"
	"github.com/blacktokki/notesearcher/internal/note"
)

type SourceRepo interface {
	ListUpdatedSince(ctx context.Context, since time.Time) ([]note.Document, error)
}

type WatermarkStore interface {
	Get(ctx context.Context) (time.Time, error)
	Set(ctx context.Context, ts time.Time) error
}

// Orchestrator polls the source store for documents updated past the
// watermark and re-indexes them. The watermark is committed only after every
// document of a cycle has landed, so a failed cycle is retried in full on the
// next tick rather than silently skipping documents.
type Orchestrator struct {
	notes     SourceRepo
	watermark WatermarkStore
	indexer   *Indexer
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewOrchestrator(notes SourceRepo, watermark WatermarkStore, ix *Indexer, interval time.Duration) *Orchestrator {
	return &Orchestrator{
		notes:     notes,
		watermark: watermark,
		indexer:   ix,
		interval:  interval,
	}
}

// RunCycle executes one extract-transform-load pass and returns the number
// of documents processed. Zero documents is a normal idle cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) (int, error) {
	since, err := o.watermark.Get(ctx)
	if err != nil {
		return 0, err
	}

	docs, err := o.notes.ListUpdatedSince(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "sync cycle started", "since", since, "documents", len(docs))

	var latest time.Time
	totalChunks := 0
	for _, doc := range docs {
		n, err := o.indexer.IndexDocument(ctx, doc)
		if err != nil {
			slog.ErrorContext(ctx, "document indexing failed, watermark not advanced",
				"note_id", doc.ID, "error", err)
			return 0, err
		}
		totalChunks += n
		if doc.UpdatedAt.After(latest) {
			latest = doc.UpdatedAt
		}
	}

	if err := o.watermark.Set(ctx, latest); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "sync cycle committed",
		"documents", len(docs), "chunks", totalChunks, "watermark", latest)
	return len(docs), nil
}

// Start launches the polling loop in its own goroutine. Each tick runs under
// a fresh correlation id so one cycle's log lines group together.
func (o *Orchestrator) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})

	go func() {
		defer close(o.done)
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cycleCtx := middleware.WithCorrelationID(ctx, uuid.New().String())
				if _, err := o.RunCycle(cycleCtx); err != nil {
					slog.ErrorContext(cycleCtx, "sync cycle failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
func (o *Orchestrator) Stop() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	<-o.done
}
