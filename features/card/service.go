// Package card relocates a heading-bounded block from one note to another.
// A block is the matched heading plus everything up to the next heading of
// equal or shallower level.
package card

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/blacktokki/notesearcher/internal/apperr"
	"github.com/blacktokki/notesearcher/internal/config"
	"github.com/blacktokki/notesearcher/internal/middleware"
	"github.com/blacktokki/notesearcher/internal/notebook"
	"github.com/blacktokki/notesearcher/internal/worker"
)

type DocumentStore interface {
	GetNoteByTitle(ctx context.Context, title string) (*notebook.Content, error)
	UpdateNoteContent(ctx context.Context, current notebook.Content, newHTML string) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type Result struct {
	Heading     string `json:"heading"`
	SourceID    int64  `json:"sourceId"`
	TargetID    int64  `json:"targetId"`
	SourceTitle string `json:"sourceTitle"`
	TargetTitle string `json:"targetTitle"`
}

type Service struct {
	publisher TaskPublisher
}

func NewService(publisher TaskPublisher) *Service {
	return &Service{publisher: publisher}
}

// Move cuts the block matching headingText out of the source note and
// appends it to the target note. Both titles must resolve before anything is
// mutated. The two updates are independent network calls with no rollback:
// the target is written first, and a source failure after a committed target
// write surfaces as a partial failure naming the side that stuck.
func (s *Service) Move(ctx context.Context, store DocumentStore, sourceTitle, targetTitle, headingText string) (*Result, error) {
	if sourceTitle == "" || targetTitle == "" {
		return nil, apperr.Validation("title", "source and target must not be empty")
	}
	if headingText == "" {
		return nil, apperr.Validation("heading", "must not be empty")
	}
	if sourceTitle == targetTitle {
		return nil, apperr.Validation("title", "source and target must differ")
	}

	source, err := store.GetNoteByTitle(ctx, sourceTitle)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apperr.NotFound("note", sourceTitle)
	}
	target, err := store.GetNoteByTitle(ctx, targetTitle)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("note", targetTitle)
	}

	newSourceHTML, block, ok := extractBlock(source.Description, headingText)
	if !ok {
		return nil, apperr.NotFound("heading", headingText)
	}
	newTargetHTML := target.Description + "\n" + block

	if err := store.UpdateNoteContent(ctx, *target, newTargetHTML); err != nil {
		return nil, err
	}
	if err := store.UpdateNoteContent(ctx, *source, newSourceHTML); err != nil {
		// The target write already committed; keep its index fresh anyway.
		s.requestReindex(ctx, target.ID)
		return nil, &apperr.PartialFailureError{Succeeded: targetTitle, Failed: sourceTitle, Err: err}
	}

	s.requestReindex(ctx, source.ID)
	s.requestReindex(ctx, target.ID)

	return &Result{
		Heading:     headingText,
		SourceID:    source.ID,
		TargetID:    target.ID,
		SourceTitle: sourceTitle,
		TargetTitle: targetTitle,
	}, nil
}

// requestReindex asks the reindex worker to pick up a mutated note ahead of
// the polling loop. Publish failures are logged, not returned: the polling
// loop converges the index on its own within one interval.
func (s *Service) requestReindex(ctx context.Context, noteID int64) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(worker.ReindexPayload{
		NoteID:        noteID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(config.TopicNoteReindex, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish reindex task", "note_id", noteID, "error", err)
	}
}
