package embedder

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// OpenAIProvider generates embeddings through an OpenAI-compatible API.
type OpenAIProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// OpenAIConfig holds the provider settings.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// NewOpenAIProvider creates an OpenAI-compatible embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// EmbedBatch implements Embedder using the native batch endpoint.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          p.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	resp, err := retryWithBackoff(ctx, DefaultRetryConfig(), isTransientAPIError, func() (openai.EmbeddingResponse, error) {
		return p.client.CreateEmbeddings(ctx, req)
	})
	if err != nil {
		p.logger.Warn("embedding batch failed",
			zap.String("model", string(p.model)),
			zap.Int("batch", len(texts)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", types.ErrEmbedFailed, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", types.ErrEmbedFailed, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", types.ErrEmbedFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Model returns the embedding model name.
func (p *OpenAIProvider) Model() string { return string(p.model) }

// Close is a no-op; the API client holds no persistent resources.
func (p *OpenAIProvider) Close() error { return nil }

// isTransientAPIError reports whether an OpenAI API failure is worth
// retrying: rate limits, 5xx responses, and transport errors. Malformed
// requests (4xx other than 429) are structural and surface immediately.
func isTransientAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	// Network-level failure without a structured error.
	return true
}
