// Package history reconstructs a note's revision timeline from its snapshot
// and delta records.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/blacktokki/notesearcher/internal/apperr"
	"github.com/blacktokki/notesearcher/internal/markdown"
	"github.com/blacktokki/notesearcher/internal/note"
	"github.com/blacktokki/notesearcher/internal/notebook"
)

// Revision is one restored point of a note's history, newest first.
type Revision struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"` // "SNAPSHOT" or "DELTA"
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"` // markdown rendering of the restored body
}

// Omission records a revision that could not be restored, so callers can
// distinguish "missing" from "never existed".
type Omission struct {
	ID          int64  `json:"id"`
	SnapshotRef int64  `json:"snapshotRef"`
	Reason      string `json:"reason"`
}

type Response struct {
	Title     string     `json:"title"`
	Page      int        `json:"page"`
	Revisions []Revision `json:"revisions"`
	Omitted   []Omission `json:"omitted,omitempty"`
}

// DocumentStore is the slice of the notebook API the resolver needs. The
// handler passes a request-scoped client carrying the caller's credential.
type DocumentStore interface {
	GetNoteByTitle(ctx context.Context, title string) (*notebook.Content, error)
	FetchContents(ctx context.Context, types []string, withHidden bool, parentID *int64, page int) ([]notebook.Content, error)
}

type Service struct {
	conv *markdown.Converter
}

func NewService(conv *markdown.Converter) *Service {
	return &Service{conv: conv}
}

// Resolve returns the requested page of a note's revision history with each
// node's content restored. Snapshots render directly; deltas are applied
// against their declared base snapshot, which is looked up across the note's
// full snapshot set, not just the page window. A delta whose base cannot be
// found or whose encoding does not apply is reported in Omitted instead of
// being silently dropped.
func (s *Service) Resolve(ctx context.Context, store DocumentStore, title string, page int) (*Response, error) {
	if title == "" {
		return nil, apperr.Validation("title", "must not be empty")
	}
	if page < 0 {
		return nil, apperr.Validation("page", "must be >= 0")
	}

	parent, err := store.GetNoteByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NotFound("note", title)
	}

	nodes, err := store.FetchContents(ctx, []string{note.KindSnapshot, note.KindDelta}, true, &parent.ID, page)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.fetchAllSnapshots(ctx, store, parent.ID)
	if err != nil {
		return nil, err
	}

	resp := &Response{Title: title, Page: page, Revisions: []Revision{}}
	dmp := diffmatchpatch.New()

	for _, n := range nodes {
		switch n.Type {
		case note.KindSnapshot:
			resp.Revisions = append(resp.Revisions, Revision{
				ID:        n.ID,
				Kind:      n.Type,
				Timestamp: n.Updated,
				Content:   s.conv.FromHTML(n.Description),
			})
		case note.KindDelta:
			base, ok := snapshots[n.SnapshotID]
			if !ok {
				resp.Omitted = append(resp.Omitted, Omission{
					ID:          n.ID,
					SnapshotRef: n.SnapshotID,
					Reason:      "base snapshot not found",
				})
				continue
			}
			diffs, err := dmp.DiffFromDelta(base.Description, n.Diff)
			if err != nil {
				slog.WarnContext(ctx, "undecodable delta", "revision_id", n.ID, "error", err)
				resp.Omitted = append(resp.Omitted, Omission{
					ID:          n.ID,
					SnapshotRef: n.SnapshotID,
					Reason:      fmt.Sprintf("delta does not apply: %v", err),
				})
				continue
			}
			resp.Revisions = append(resp.Revisions, Revision{
				ID:        n.ID,
				Kind:      n.Type,
				Timestamp: n.Updated,
				Content:   s.conv.FromHTML(dmp.DiffText2(diffs)),
			})
		}
	}

	return resp, nil
}

// fetchAllSnapshots walks every page of the note's snapshots. Deltas on the
// requested page may reference a base far outside that page's window.
func (s *Service) fetchAllSnapshots(ctx context.Context, store DocumentStore, parentID int64) (map[int64]notebook.Content, error) {
	snapshots := make(map[int64]notebook.Content)
	for page := 0; ; page++ {
		batch, err := store.FetchContents(ctx, []string{note.KindSnapshot}, true, &parentID, page)
		if err != nil {
			return nil, err
		}
		for _, snap := range batch {
			snapshots[snap.ID] = snap
		}
		if len(batch) < notebook.FetchPageSize {
			return snapshots, nil
		}
	}
}
