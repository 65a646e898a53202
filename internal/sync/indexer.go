// Package sync keeps the chunk index converged with the notebook source of
// truth: a watermark-driven polling loop for bulk catch-up, plus a
// single-document path shared with the targeted re-index worker.
package sync

import (
	"context"
	"log/slog"

	"github.com/blacktokki/notesearcher/internal/apperr"
	"github.com/blacktokki/notesearcher/internal/chunk"
	"github.com/blacktokki/notesearcher/internal/note"
)

type Embedder interface {
	EmbedPassage(ctx context.Context, text string) ([]float32, error)
}

type ChunkStore interface {
	UpsertBatch(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
	DeleteByOriginalID(ctx context.Context, originalID int64) error
}

// Indexer turns one document into index state: chunk, embed, invalidate the
// document's previous chunks, then write the new ones in batches.
type Indexer struct {
	chunker   *chunk.Chunker
	embedder  Embedder
	store     ChunkStore
	batchSize int
}

func NewIndexer(c *chunk.Chunker, e Embedder, s ChunkStore, batchSize int) *Indexer {
	return &Indexer{chunker: c, embedder: e, store: s, batchSize: batchSize}
}

// IndexDocument replaces the document's index entries with freshly derived
// ones and returns the new chunk count. Old chunks are deleted before the
// new ones land, so a document that shrank leaves no stale trailing chunks.
// A document that yields no chunks ends up fully deindexed.
func (ix *Indexer) IndexDocument(ctx context.Context, doc note.Document) (int, error) {
	chunks := ix.chunker.Chunk(doc)

	vectors := make([][]float32, 0, len(chunks))
	for _, c := range chunks {
		vec, err := ix.embedder.EmbedPassage(ctx, c.Text)
		if err != nil {
			return 0, apperr.Transient("embed chunk "+c.ID, err)
		}
		vectors = append(vectors, vec)
	}

	if err := ix.store.DeleteByOriginalID(ctx, doc.ID); err != nil {
		return 0, apperr.Transient("invalidate chunks", err)
	}

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := ix.store.UpsertBatch(ctx, chunks[start:end], vectors[start:end]); err != nil {
			return 0, apperr.Transient("upsert chunks", err)
		}
	}

	slog.DebugContext(ctx, "document indexed", "note_id", doc.ID, "chunks", len(chunks))
	return len(chunks), nil
}

// Deindex drops every chunk of a document without writing replacements.
// Used when the source row is gone but index entries may linger.
func (ix *Indexer) Deindex(ctx context.Context, originalID int64) error {
	if err := ix.store.DeleteByOriginalID(ctx, originalID); err != nil {
		return apperr.Transient("deindex document", err)
	}
	return nil
}
