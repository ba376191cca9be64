// Package updater keeps the vector index in sync with file changes.
// Each update is file-atomic: the new revision is fully indexed before
// any stale chunk is removed, so a failure at any point never leaves
// the file partially indexed or missing from the index.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codemem/codemem-mcp/internal/chunker"
	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/metrics"
	"github.com/codemem/codemem-mcp/internal/vecindex"
	"github.com/codemem/codemem-mcp/pkg/types"
)

// UpdateIndex is the slice of the vector store the updater needs.
type UpdateIndex interface {
	Upsert(ctx context.Context, records []vecindex.Record) error
	DeleteByPath(ctx context.Context, repoPath string, keep []uint64) error
}

// Status reports the outcome of one file update.
type Status struct {
	RepoPath string `json:"repo_path"`
	Chunks   int    `json:"chunks"`
	Skipped  bool   `json:"skipped,omitempty"`
	Duration string `json:"duration"`
}

// Updater re-chunks, re-embeds and re-indexes changed files.
type Updater struct {
	extractor   *chunker.Extractor
	embedder    embedder.Embedder
	index       UpdateIndex
	batchSize   int
	maxInFlight int
	logger      *zap.Logger
}

// New creates an Updater. batchSize is the embedding batch size, capped
// at the provider limit; maxInFlight bounds concurrent batches for one
// file. Values below 1 are treated as 1.
func New(ext *chunker.Extractor, emb embedder.Embedder, index UpdateIndex, batchSize, maxInFlight int, logger *zap.Logger) *Updater {
	if batchSize < 1 || batchSize > embedder.MaxBatchSize {
		batchSize = embedder.MaxBatchSize
	}
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Updater{
		extractor:   ext,
		embedder:    emb,
		index:       index,
		batchSize:   batchSize,
		maxInFlight: maxInFlight,
		logger:      logger,
	}
}

// Update replaces all indexed chunks of repoPath with chunks extracted
// from content. All vectors are produced before the first index write,
// so an embedding failure leaves the previous revision intact.
func (u *Updater) Update(ctx context.Context, repoPath, content, commitID string) (*Status, error) {
	start := time.Now()

	chunks, err := u.extractor.Extract(repoPath, content, chunker.LanguageFor(repoPath))
	if err != nil {
		if errors.Is(err, types.ErrExtractionSkipped) {
			u.logger.Debug("extraction skipped", zap.String("path", repoPath), zap.Error(err))
			metrics.IndexUpdatesTotal.WithLabelValues("skipped").Inc()
			return &Status{RepoPath: repoPath, Skipped: true, Duration: time.Since(start).String()}, nil
		}
		metrics.IndexUpdatesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("extract %s: %w", repoPath, err)
	}

	for i := range chunks {
		chunks[i].CommitID = commitID
	}

	vectors, err := u.embedAll(ctx, chunks)
	if err != nil {
		metrics.IndexUpdatesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	records := make([]vecindex.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vecindex.Record{ID: c.PointID(), Vector: vectors[i], Chunk: c}
	}

	// Upsert first: point IDs are content hashes, so the write only
	// supersedes identical chunks. Stale points are removed afterwards,
	// sparing the new IDs, so a failed upsert leaves the previous
	// revision fully in place.
	if err := u.index.Upsert(ctx, records); err != nil {
		metrics.IndexUpdatesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upsert %s: %w", repoPath, err)
	}
	ids := make([]uint64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := u.index.DeleteByPath(ctx, repoPath, ids); err != nil {
		metrics.IndexUpdatesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("delete stale chunks for %s: %w", repoPath, err)
	}

	metrics.IndexUpdatesTotal.WithLabelValues("ok").Inc()
	u.logger.Info("index updated",
		zap.String("path", repoPath),
		zap.String("commit", commitID),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))
	return &Status{RepoPath: repoPath, Chunks: len(chunks), Duration: time.Since(start).String()}, nil
}

// embedAll embeds every chunk in provider-sized batches, concurrently up
// to maxInFlight, collecting all vectors before returning.
func (u *Updater) embedAll(ctx context.Context, chunks []types.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Code
	}

	vectors := make([][]float32, len(texts))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.maxInFlight)
	for off := 0; off < len(texts); off += u.batchSize {
		lo, hi := off, off+u.batchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		g.Go(func() error {
			batch, err := u.embedder.EmbedBatch(gctx, texts[lo:hi])
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", lo, hi, err)
			}
			mu.Lock()
			copy(vectors[lo:hi], batch)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
