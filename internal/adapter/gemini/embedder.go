// Package gemini embeds text through the Gemini embedding API. Passages and
// queries are prefixed differently so the model places them in the matched
// asymmetric-retrieval space.
package gemini

import (
	"context"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Embedder struct {
	client        *genai.Client
	model         string
	passagePrefix string
	queryPrefix   string
}

func NewEmbedder(ctx context.Context, apiKey, model, passagePrefix, queryPrefix string) (*Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Embedder{
		client:        client,
		model:         model,
		passagePrefix: passagePrefix,
		queryPrefix:   queryPrefix,
	}, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}

// EmbedPassage embeds indexable chunk text.
func (e *Embedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, e.passagePrefix+text)
}

// EmbedQuery embeds a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, e.queryPrefix+text)
}

func (e *Embedder) embed(ctx context.Context, text string) ([]float32, error) {
	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return nil, err
	}
	if res.Embedding != nil {
		return res.Embedding.Values, nil
	}
	return nil, nil
}
