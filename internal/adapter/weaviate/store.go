// Package weaviate is the data-plane adapter for the chunk index: batched
// writes, owner-scoped vector queries and whole-document invalidation.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/blacktokki/notesearcher/features/search"
	"github.com/blacktokki/notesearcher/internal/chunk"
	"github.com/blacktokki/notesearcher/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// objectID derives a stable weaviate object id from the chunk id, so
// re-upserting an unchanged chunk overwrites its previous object instead of
// duplicating it.
func objectID(chunkID string) strfmt.UUID {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(vector.ClassName+"/"+chunkID))
	return strfmt.UUID(id.String())
}

// UpsertBatch writes one batch of embedded chunks. vectors[i] must be the
// embedding of chunks[i].
func (s *Store) UpsertBatch(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(chunks))
	for i, c := range chunks {
		headerPath, err := json.Marshal(c.Metadata.HeaderPath)
		if err != nil {
			return fmt.Errorf("encode header path for %s: %w", c.ID, err)
		}
		links, err := json.Marshal(c.Metadata.Links)
		if err != nil {
			return fmt.Errorf("encode links for %s: %w", c.ID, err)
		}

		objects = append(objects, &models.Object{
			Class: vector.ClassName,
			ID:    objectID(c.ID),
			Properties: map[string]interface{}{
				"content":    c.Text,
				"chunkId":    c.ID,
				"originalId": c.Metadata.OriginalID,
				"ownerId":    c.Metadata.OwnerID,
				"title":      c.Metadata.Title,
				"createdAt":  c.Metadata.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				"headerPath": string(headerPath),
				"links":      string(links),
				"hidden":     c.Metadata.Hidden,
				"external":   c.Metadata.External,
			},
			Vector: models.C11yVector(vectors[i]),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch object %s: %s", r.ID, r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// DeleteByOriginalID drops every chunk of one document. Called before an
// upsert so a shrinking document leaves no stale trailing chunks behind.
func (s *Store) DeleteByOriginalID(ctx context.Context, originalID int64) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"originalId"}).
			WithOperator(filters.Equal).
			WithValueInt(originalID)).
		Do(ctx)
	return err
}

// Query ranks chunks by vector distance within the filter's owner scope.
// Hidden and external chunks are excluded unless the filter opts in.
func (s *Store) Query(ctx context.Context, vec []float32, filter search.IndexFilter) ([]search.Result, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vec)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "chunkId"},
		{Name: "originalId"},
		{Name: "title"},
		{Name: "createdAt"},
		{Name: "headerPath"},
		{Name: "links"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	operands := []*filters.WhereBuilder{
		filters.Where().
			WithPath([]string{"ownerId"}).
			WithOperator(filters.Equal).
			WithValueInt(filter.OwnerID),
	}
	if !filter.IncludeHidden {
		operands = append(operands, filters.Where().
			WithPath([]string{"hidden"}).
			WithOperator(filters.Equal).
			WithValueBoolean(false))
	}
	if !filter.IncludeExternal {
		operands = append(operands, filters.Where().
			WithPath([]string{"external"}).
			WithOperator(filters.Equal).
			WithValueBoolean(false))
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)).
		WithLimit(filter.Limit).
		WithOffset(filter.Offset).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []search.Result
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	rows, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return results, nil
	}

	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		r := search.Result{}
		if content, ok := props["content"].(string); ok {
			r.Content = content
		}
		if id, ok := props["chunkId"].(string); ok {
			r.ChunkID = id
		}
		if originalID, ok := props["originalId"].(float64); ok {
			r.OriginalID = int64(originalID)
		}
		if title, ok := props["title"].(string); ok {
			r.Title = title
		}
		if createdAt, ok := props["createdAt"].(string); ok {
			r.CreatedAt = createdAt
		}
		if raw, ok := props["headerPath"].(string); ok && raw != "" {
			var path []chunk.HeaderRef
			if err := json.Unmarshal([]byte(raw), &path); err == nil {
				r.HeaderPath = path
			}
		}
		if raw, ok := props["links"].(string); ok && raw != "" {
			var links []chunk.Link
			if err := json.Unmarshal([]byte(raw), &links); err == nil {
				r.Links = links
			}
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				r.Distance = float32(distance)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// CountChunks returns the total number of indexed chunks across all owners.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := data[vector.ClassName].([]interface{}); ok && len(rows) > 0 {
			if props, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := props["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
