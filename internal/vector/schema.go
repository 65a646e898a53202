package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the weaviate class holding indexed note chunks.
const ClassName = "NoteChunk"

// SchemaClient defines the interface for weaviate schema operations.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks that the NoteChunk class exists with all expected
// properties and creates whatever is missing.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "chunkId",
			DataType: []string{"string"}, // "{originalId}_{ordinal}" (exact match)
		},
		{
			Name:     "originalId",
			DataType: []string{"int"},
		},
		{
			Name:     "ownerId",
			DataType: []string{"int"},
		},
		{
			Name:     "title",
			DataType: []string{"text"},
		},
		{
			Name:     "createdAt",
			DataType: []string{"string"},
		},
		{
			Name:     "headerPath",
			DataType: []string{"text"}, // JSON list of {level, text}
		},
		{
			Name:     "links",
			DataType: []string{"text"}, // JSON list of {text, url}
		},
		{
			Name:     "hidden",
			DataType: []string{"boolean"},
		},
		{
			Name:     "external",
			DataType: []string{"boolean"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A chunk of an indexed note",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}
