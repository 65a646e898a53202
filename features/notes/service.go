// Package notes exposes the write-side note operations backed by the
// external document store: content writes, renames and listings.
package notes

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/blacktokki/notesearcher/internal/apperr"
	"github.com/blacktokki/notesearcher/internal/config"
	"github.com/blacktokki/notesearcher/internal/markdown"
	"github.com/blacktokki/notesearcher/internal/middleware"
	"github.com/blacktokki/notesearcher/internal/note"
	"github.com/blacktokki/notesearcher/internal/notebook"
	"github.com/blacktokki/notesearcher/internal/worker"
)

const previewLength = 100

type DocumentStore interface {
	GetNoteByTitle(ctx context.Context, title string) (*notebook.Content, error)
	CreateNote(ctx context.Context, title, contentHTML string) (int64, error)
	UpdateNoteContent(ctx context.Context, current notebook.Content, newHTML string) error
	RenameNote(ctx context.Context, current notebook.Content, newTitle string) error
	FetchContents(ctx context.Context, types []string, withHidden bool, parentID *int64, page int) ([]notebook.Content, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type WriteResult struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Created bool   `json:"created"`
}

type Summary struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// Board is a kanban board definition: its column note ids and the heading
// level its cards live at.
type Board struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	NoteIDs     []int64 `json:"noteIds"`
	HeaderLevel int     `json:"headerLevel"`
}

type Service struct {
	publisher TaskPublisher
}

func NewService(publisher TaskPublisher) *Service {
	return &Service{publisher: publisher}
}

// Write overwrites the content of the note with the given title, or creates
// it when absent. Titles are never changed by a write; renames go through
// Rename.
func (s *Service) Write(ctx context.Context, store DocumentStore, title, contentHTML string) (*WriteResult, error) {
	if title == "" {
		return nil, apperr.Validation("title", "must not be empty")
	}

	existing, err := store.GetNoteByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if err := store.UpdateNoteContent(ctx, *existing, contentHTML); err != nil {
			return nil, err
		}
		s.requestReindex(ctx, existing.ID)
		return &WriteResult{ID: existing.ID, Title: title}, nil
	}

	id, err := store.CreateNote(ctx, title, contentHTML)
	if err != nil {
		return nil, err
	}
	s.requestReindex(ctx, id)
	return &WriteResult{ID: id, Title: title, Created: true}, nil
}

// Rename changes a note's title. Titles double as paths in the notebook, so
// this is also how a note moves between folders. Refuses to overwrite an
// existing note at the new title.
func (s *Service) Rename(ctx context.Context, store DocumentStore, oldTitle, newTitle string) (*WriteResult, error) {
	if oldTitle == "" || newTitle == "" {
		return nil, apperr.Validation("title", "must not be empty")
	}
	if oldTitle == newTitle {
		return nil, apperr.Validation("title", "old and new titles are identical")
	}

	occupied, err := store.GetNoteByTitle(ctx, newTitle)
	if err != nil {
		return nil, err
	}
	if occupied != nil {
		return nil, apperr.Validation("newTitle", "a note with that title already exists")
	}

	existing, err := store.GetNoteByTitle(ctx, oldTitle)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound("note", oldTitle)
	}

	if err := store.RenameNote(ctx, *existing, newTitle); err != nil {
		return nil, err
	}
	s.requestReindex(ctx, existing.ID)
	return &WriteResult{ID: existing.ID, Title: newTitle}, nil
}

// List returns the caller's notes with a short plain-text preview,
// optionally narrowed by a case-insensitive title keyword.
func (s *Service) List(ctx context.Context, store DocumentStore, keyword string) ([]Summary, error) {
	contents, err := store.FetchContents(ctx, []string{note.KindNote}, false, nil, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	summaries := []Summary{}
	for _, c := range contents {
		if needle != "" && !strings.Contains(strings.ToLower(c.Title), needle) {
			continue
		}
		preview := strings.ReplaceAll(markdown.StripTags(c.Description), "\n", " ")
		if len(preview) > previewLength {
			preview = preview[:previewLength]
		}
		summaries = append(summaries, Summary{ID: c.ID, Title: c.Title, Preview: preview})
	}
	return summaries, nil
}

// Boards lists the kanban boards with their column layout.
func (s *Service) Boards(ctx context.Context, store DocumentStore) ([]Board, error) {
	contents, err := store.FetchContents(ctx, []string{note.KindBoard}, false, nil, 0)
	if err != nil {
		return nil, err
	}

	boards := []Board{}
	for _, c := range contents {
		b := Board{ID: c.ID, Title: c.Title}
		if ids, ok := c.Option["BOARD_NOTE_IDS"].([]interface{}); ok {
			for _, id := range ids {
				if n, ok := id.(float64); ok {
					b.NoteIDs = append(b.NoteIDs, int64(n))
				}
			}
		}
		if level, ok := c.Option["BOARD_HEADER_LEVEL"].(float64); ok {
			b.HeaderLevel = int(level)
		}
		boards = append(boards, b)
	}
	return boards, nil
}

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
