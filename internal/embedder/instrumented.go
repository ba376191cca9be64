package embedder

import (
	"context"
	"time"

	"github.com/codemem/codemem-mcp/internal/metrics"
)

// Instrumented wraps an Embedder with transport-level metrics.
type Instrumented struct {
	inner    Embedder
	provider string
}

// NewInstrumented wraps an embedder with request/duration metrics.
func NewInstrumented(inner Embedder, provider string) *Instrumented {
	return &Instrumented{inner: inner, provider: provider}
}

// EmbedBatch delegates and records outcome and duration.
func (m *Instrumented) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := m.inner.EmbedBatch(ctx, texts)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(m.provider, m.inner.Model(), status).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(m.provider, m.inner.Model()).Observe(duration.Seconds())

	return vectors, err
}

// Dimensions returns the inner embedder's vector size.
func (m *Instrumented) Dimensions() int { return m.inner.Dimensions() }

// Model returns the inner embedder's model name.
func (m *Instrumented) Model() string { return m.inner.Model() }

// Close closes the inner embedder.
func (m *Instrumented) Close() error { return m.inner.Close() }
