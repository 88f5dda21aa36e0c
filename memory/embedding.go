package memory

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// EmbeddingOptions configure an OpenAIEmbedder.
type EmbeddingOptions struct {
	// Model is the embedding model name.
	Model string
	// Dimension overrides the inferred vector size.
	Dimension int
	// APIKey overrides the environment-provided key.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// OpenAIEmbedder implements EmbeddingProvider using the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an embedder. Defaults to text-embedding-3-small.
func NewOpenAIEmbedder(optFns ...func(o *EmbeddingOptions)) *OpenAIEmbedder {
	opts := EmbeddingOptions{
		Model: "text-embedding-3-small",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimension == 0 {
		switch opts.Model {
		case "text-embedding-3-large":
			opts.Dimension = 3072
		default:
			opts.Dimension = 1536
		}
	}

	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(reqOpts...),
		model:     opts.Model,
		dimension: opts.Dimension,
	}
}

// Dimension implements EmbeddingProvider.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// GenerateEmbedding implements EmbeddingProvider.
func (e *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// GenerateEmbeddings implements EmbeddingProvider.
func (e *OpenAIEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}
