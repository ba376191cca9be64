package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// Ollama defaults.
const (
	DefaultOllamaURL        = "http://localhost:11434"
	DefaultOllamaModel      = "mxbai-embed-large"
	DefaultOllamaDimensions = 1024
	ollamaTimeout           = 30 * time.Second
)

// OllamaProvider generates embeddings using a local Ollama server.
type OllamaProvider struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	logger     *zap.Logger
}

// OllamaConfig holds the provider settings.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(cfg OllamaConfig, logger *zap.Logger) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultOllamaDimensions
	}
	return &OllamaProvider{
		client:     &http.Client{Timeout: ollamaTimeout},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// EmbedBatch implements Embedder. Ollama has no native batch endpoint, so
// texts are embedded sequentially; any final per-text failure fails the
// whole batch so vectors are never applied partially.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := retryWithBackoff(ctx, DefaultRetryConfig(), isTransientHTTPError, func() ([]float32, error) {
			return p.embedOne(ctx, text)
		})
		if err != nil {
			p.logger.Warn("ollama embedding failed",
				zap.String("model", p.model),
				zap.Int("index", i),
				zap.Error(err))
			return nil, fmt.Errorf("%w: text %d: %v", types.ErrEmbedFailed, i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &httpStatusError{status: resp.StatusCode, body: string(msg)}
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}

	vec := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		vec[i] = float32(v)
	}
	// Ollama vectors are not unit length; normalize for cosine search.
	return NormalizeVector(vec), nil
}

// Dimensions returns the embedding vector size.
func (p *OllamaProvider) Dimensions() int { return p.dimensions }

// Model returns the embedding model name.
func (p *OllamaProvider) Model() string { return p.model }

// Close releases idle connections.
func (p *OllamaProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Ping checks server reachability via the tags endpoint without running
// inference.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: create ping request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}
	return nil
}

// httpStatusError carries a non-200 provider response.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.status, e.body)
}

// isTransientHTTPError retries rate limits, 5xx responses, and transport
// failures.
func isTransientHTTPError(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusTooManyRequests || statusErr.status >= 500
	}
	return true
}
