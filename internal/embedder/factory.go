package embedder

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codemem/codemem-mcp/internal/config"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// New creates an embedder from configuration, wrapped with rate limiting
// and metrics instrumentation.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var inner Embedder

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		inner = NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}, logger)
	case ProviderOllama:
		inner = NewOllamaProvider(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.RateLimit > 0 {
		inner = NewRateLimited(inner, rate.Limit(cfg.RateLimit))
	}
	return NewInstrumented(inner, cfg.Provider), nil
}
