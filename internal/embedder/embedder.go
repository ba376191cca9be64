package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// MaxBatchSize is the maximum number of texts per EmbedBatch call.
// Larger inputs are split into sequential batches by the caller, never
// by the provider.
const MaxBatchSize = 96

// Common errors.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrBatchTooLarge = errors.New("batch size exceeds limit")
)

// Embedder turns batches of text into fixed-length vectors. Results are
// order-preserving and the same length as the input; partial per-item
// success is not supported, a failed batch fails whole.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// Model returns the embedding model name.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// ValidateBatch validates an embedding batch before dispatch.
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed, got %d", ErrBatchTooLarge, MaxBatchSize, len(texts))
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrEmptyText, i)
		}
	}
	return nil
}

// NormalizeVector normalizes a vector to unit length for cosine search.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
