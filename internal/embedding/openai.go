package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/syncline/likesync/internal/syncerr"
)

// Compile-time interface check
var _ Embedder = (*OpenAI)(nil)

// EmbeddingsService defines the interface for making embedding API calls.
// This abstraction enables testing without calling the real OpenAI API.
type EmbeddingsService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// OpenAI implements the embedding service using OpenAI's API.
// Retry policy is owned by the backfill scheduler, not this layer.
type OpenAI struct {
	embeddings EmbeddingsService
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
}

// NewOpenAI creates a new OpenAI embedding service.
func NewOpenAI(apiKey, model string, dimensions int, timeout time.Duration) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		embeddings: client.Embeddings,
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
		timeout:    timeout,
	}
}

// Embed generates an embedding for the given text. A provider error or an
// empty response is a hard failure; a dimensionality mismatch is logged as
// a warning and the vector is returned as-is.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](
			openai.EmbeddingNewParamsInputArrayOfStrings([]string{text}),
		),
		Model: openai.F(o.model),
	})
	if err != nil {
		return nil, syncerr.Wrap(err, syncerr.CodeEmbeddingProvider, "embedding generation failed")
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, syncerr.New(syncerr.CodeEmbeddingProvider, "embedding generation failed: no vector returned")
	}

	// Convert float64 to float32
	embedding := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}

	if len(embedding) != o.dimensions {
		slog.Warn("embedding dimensionality mismatch",
			"component", "embedding",
			"expected", o.dimensions,
			"got", len(embedding),
		)
	}

	return embedding, nil
}

// ModelName returns the embedding model name.
func (o *OpenAI) ModelName() string {
	return string(o.model)
}

// Dimensions returns the agreed embedding dimensionality.
func (o *OpenAI) Dimensions() int {
	return o.dimensions
}
