package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited bounds the request rate against the embedding provider so
// concurrent update pipelines cannot overwhelm it.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited wraps an embedder with a token-bucket rate limiter
// allowing rps batch requests per second.
func NewRateLimited(inner Embedder, rps rate.Limit) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rps, 1),
	}
}

// EmbedBatch waits for rate-limiter admission, then delegates.
func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the inner embedder's vector size.
func (r *RateLimited) Dimensions() int { return r.inner.Dimensions() }

// Model returns the inner embedder's model name.
func (r *RateLimited) Model() string { return r.inner.Model() }

// Close closes the inner embedder.
func (r *RateLimited) Close() error { return r.inner.Close() }
