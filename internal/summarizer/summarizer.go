// Package summarizer compresses overflow text into a bounded token
// allowance. It is a pluggable capability shaped like the embedding
// client (text in, text out) so tests can substitute a stub.
package summarizer

import "context"

// Summarizer produces a compressed rendition of text fitting within
// maxTokens. Best effort: callers must not assume the output reaches the
// cap exactly, and must tolerate failure by dropping the overflow.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}
