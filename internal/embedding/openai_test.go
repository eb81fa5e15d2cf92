package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/syncline/likesync/internal/syncerr"
)

// mockEmbeddingsService implements EmbeddingsService for testing
type mockEmbeddingsService struct {
	response  *openai.CreateEmbeddingResponse
	err       error
	callCount int
	lastInput []string
}

func (m *mockEmbeddingsService) New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.callCount++

	if params.Input.Value != nil {
		if arr, ok := params.Input.Value.(openai.EmbeddingNewParamsInputArrayOfStrings); ok {
			m.lastInput = []string(arr)
		}
	}

	return m.response, m.err
}

func mockResponse(vector []float64) *openai.CreateEmbeddingResponse {
	return &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Embedding: vector, Index: 0}},
	}
}

func newTestOpenAI(mock *mockEmbeddingsService, dims int) *OpenAI {
	return &OpenAI{
		embeddings: mock,
		model:      openai.EmbeddingModelTextEmbedding3Small,
		dimensions: dims,
	}
}

func TestEmbed(t *testing.T) {
	mock := &mockEmbeddingsService{
		response: mockResponse([]float64{0.1, 0.2, 0.3}),
	}

	result, err := newTestOpenAI(mock, 3).Embed(context.Background(), "some video text")
	if err != nil {
		t.Fatal(err)
	}

	if len(result) != 3 {
		t.Fatalf("result length = %d, want 3", len(result))
	}
	if result[0] != float32(0.1) {
		t.Errorf("result[0] = %v", result[0])
	}
	if len(mock.lastInput) != 1 || mock.lastInput[0] != "some video text" {
		t.Errorf("input = %v", mock.lastInput)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	mock := &mockEmbeddingsService{err: errors.New("quota exceeded")}

	_, err := newTestOpenAI(mock, 3).Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if !syncerr.IsCode(err, syncerr.CodeEmbeddingProvider) {
		t.Errorf("code = %q, want embedding_provider", syncerr.CodeOf(err))
	}
}

func TestEmbed_EmptyResponse(t *testing.T) {
	tests := []struct {
		name     string
		response *openai.CreateEmbeddingResponse
	}{
		{"no data", &openai.CreateEmbeddingResponse{}},
		{"empty vector", mockResponse(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockEmbeddingsService{response: tt.response}

			_, err := newTestOpenAI(mock, 3).Embed(context.Background(), "text")
			if err == nil {
				t.Fatal("expected hard error for missing vector")
			}
			if !syncerr.IsCode(err, syncerr.CodeEmbeddingProvider) {
				t.Errorf("code = %q, want embedding_provider", syncerr.CodeOf(err))
			}
		})
	}
}

// A dimensionality mismatch is logged, not failed: the vector is stored
// and the validity check catches it on the next sweep.
func TestEmbed_DimensionMismatchIsNotFatal(t *testing.T) {
	mock := &mockEmbeddingsService{
		response: mockResponse([]float64{0.1, 0.2}),
	}

	result, err := newTestOpenAI(mock, 1536).Embed(context.Background(), "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 2 {
		t.Errorf("result length = %d, vector must be returned as-is", len(result))
	}
}

func TestOpenAI_Accessors(t *testing.T) {
	o := NewOpenAI("key", "text-embedding-3-small", 1536, 0)
	if o.ModelName() != "text-embedding-3-small" {
		t.Errorf("model = %q", o.ModelName())
	}
	if o.Dimensions() != 1536 {
		t.Errorf("dimensions = %d", o.Dimensions())
	}
}
