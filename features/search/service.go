package search

import (
	"context"
	"time"

	"github.com/blacktokki/notesearcher/internal/apperr"
	"github.com/blacktokki/notesearcher/internal/chunk"
	"github.com/blacktokki/notesearcher/internal/markdown"
	"github.com/blacktokki/notesearcher/internal/note"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	previewLength   = 100
)

// Result is one ranked hit. Distance is the similarity-inverse reported by
// the index; exact-mode hits carry zero.
type Result struct {
	ChunkID    string            `json:"id"`
	Content    string            `json:"content"`
	Distance   float32           `json:"distance"`
	OriginalID int64             `json:"originalId"`
	Title      string            `json:"title"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	HeaderPath []chunk.HeaderRef `json:"headerPath,omitempty"`
	Links      []chunk.Link      `json:"links,omitempty"`
}

type Query struct {
	OwnerID         int64
	Text            string
	Exact           bool
	Page            int
	PageSize        int
	IncludeHidden   bool
	IncludeExternal bool
}

// IndexFilter narrows the candidate set before ranking. Owner scoping is
// mandatory; cross-user leakage is a correctness violation.
type IndexFilter struct {
	OwnerID         int64
	IncludeHidden   bool
	IncludeExternal bool
	Limit           int
	Offset          int
}

type Response struct {
	Mode    string   `json:"mode"` // "semantic" or "exact"
	Query   string   `json:"query"`
	Page    int      `json:"page"`
	Results []Result `json:"results"`
}

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type ChunkIndex interface {
	Query(ctx context.Context, vector []float32, filter IndexFilter) ([]Result, error)
}

type NoteLister interface {
	ListByTitle(ctx context.Context, ownerID int64, needle string, limit, offset int) ([]note.Document, error)
}

type Service struct {
	embedder Embedder
	index    ChunkIndex
	notes    NoteLister
	logger   *QueryLogger
}

func NewService(e Embedder, idx ChunkIndex, notes NoteLister, l *QueryLogger) *Service {
	return &Service{embedder: e, index: idx, notes: notes, logger: l}
}

// Search runs one retrieval request. Exact mode is lexical substring matching
// over note titles; otherwise the query is embedded and ranked by the
// semantic index. Both modes are owner-scoped and offset-paginated; a page
// beyond the available results is an empty result set, not an error.
func (s *Service) Search(ctx context.Context, q Query) (*Response, error) {
	if err := validate(&q); err != nil {
		return nil, err
	}

	start := time.Now()
	var results []Result
	var err error

	mode := "semantic"
	if q.Exact {
		mode = "exact"
		results, err = s.searchExact(ctx, q)
	} else {
		results, err = s.searchSemantic(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			OwnerID:    q.OwnerID,
			Query:      q.Text,
			Mode:       mode,
			NumResults: len(results),
			Duration:   time.Since(start),
		})
	}

	if results == nil {
		results = []Result{}
	}
	return &Response{Mode: mode, Query: q.Text, Page: q.Page, Results: results}, nil
}

func (s *Service) searchSemantic(ctx context.Context, q Query) ([]Result, error) {
	vec, err := s.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		return nil, apperr.Transient("embed query", err)
	}

	return s.index.Query(ctx, vec, IndexFilter{
		OwnerID:         q.OwnerID,
		IncludeHidden:   q.IncludeHidden,
		IncludeExternal: q.IncludeExternal,
		Limit:           q.PageSize,
		Offset:          q.Page * q.PageSize,
	})
}

func (s *Service) searchExact(ctx context.Context, q Query) ([]Result, error) {
	docs, err := s.notes.ListByTitle(ctx, q.OwnerID, q.Text, q.PageSize, q.Page*q.PageSize)
	if err != nil {
		return nil, apperr.Transient("title lookup", err)
	}

	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		preview := markdown.StripTags(d.Body)
		if len(preview) > previewLength {
			preview = preview[:previewLength]
		}
		results = append(results, Result{
			OriginalID: d.ID,
			Title:      d.Title,
			Content:    preview,
			CreatedAt:  d.UpdatedAt.Format(time.RFC3339),
		})
	}
	return results, nil
}

func validate(q *Query) error {
	if q.Text == "" {
		return apperr.Validation("query", "must not be empty")
	}
	if q.Page < 0 {
		return apperr.Validation("page", "must be >= 0")
	}
	if q.PageSize < 0 || q.PageSize > maxPageSize {
		return apperr.Validation("size", "must be between 0 and 100")
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}
	if q.OwnerID <= 0 {
		return apperr.Validation("owner", "missing owner scope")
	}
	return nil
}
