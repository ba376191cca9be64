package embedder

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr error
	}{
		{
			name:    "valid batch",
			texts:   []string{"func main() {}", "type Foo struct{}"},
			wantErr: nil,
		},
		{
			name:    "empty batch",
			texts:   nil,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "batch at limit",
			texts:   make96("x"),
			wantErr: nil,
		},
		{
			name:    "batch over limit",
			texts:   append(make96("x"), "one more"),
			wantErr: ErrBatchTooLarge,
		},
		{
			name:    "empty text in batch",
			texts:   []string{"ok", ""},
			wantErr: ErrEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.texts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	v := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func make96(s string) []string {
	out := make([]string, MaxBatchSize)
	for i := range out {
		out[i] = s
	}
	return out
}
