// Package router orchestrates the retrieve path: embed the prompt,
// fan out per-level vector searches, merge and deduplicate hits, enforce
// the token budget, and memoize the result.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codemem/codemem-mcp/internal/cache"
	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/metrics"
	"github.com/codemem/codemem-mcp/internal/sla"
	"github.com/codemem/codemem-mcp/internal/summarizer"
	"github.com/codemem/codemem-mcp/internal/vecindex"
	"github.com/codemem/codemem-mcp/pkg/types"
)

// SummaryPath is the synthetic repo path carried by the overflow-summary
// chunk appended when the budget truncates results.
const SummaryPath = "(overflow summary)"

// SearchIndex is the slice of the vector store the router needs.
type SearchIndex interface {
	Search(ctx context.Context, level types.Level, vector []float32, filter types.Filter, k int) ([]vecindex.Scored, error)
}

// Query holds all query-shaping parameters for one retrieve.
type Query struct {
	Prompt    string
	Levels    []types.Level
	Filter    types.Filter
	K         int
	MaxTokens int
}

// Router coordinates retrieval. The cache instance is explicit, never a
// hidden singleton, so isolated server instances can coexist in tests.
type Router struct {
	embedder   embedder.Embedder
	index      SearchIndex
	cache      *cache.Cache
	summarizer summarizer.Summarizer // nil disables overflow summarization
	logger     *zap.Logger
}

// New creates a Router.
func New(emb embedder.Embedder, index SearchIndex, c *cache.Cache, sum summarizer.Summarizer, logger *zap.Logger) *Router {
	return &Router{
		embedder:   emb,
		index:      index,
		cache:      c,
		summarizer: sum,
		logger:     logger,
	}
}

// Route answers one query with a budget-capped evidence pack. The
// tracker records pipeline phases for the SLA controller; it may be nil.
func (r *Router) Route(ctx context.Context, q Query, tracker *sla.Tracker) (*types.EvidencePack, error) {
	start := time.Now()
	pack, err := r.route(ctx, q, tracker)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RetrievalDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return pack, err
}

func (r *Router) route(ctx context.Context, q Query, tracker *sla.Tracker) (*types.EvidencePack, error) {
	if err := validate(q); err != nil {
		return nil, err
	}

	key := cache.KeyFor(q.Prompt, q.Levels, q.Filter, q.K, q.MaxTokens)
	if pack := r.cache.Get(key); pack != nil {
		r.logger.Debug("cache hit", zap.String("prompt", q.Prompt))
		return pack, nil
	}

	setState(tracker, sla.StateEmbedding)
	vectors, err := r.embedder.EmbedBatch(ctx, []string{q.Prompt})
	if err != nil {
		return nil, fmt.Errorf("query embed: %w", err)
	}
	queryVec := vectors[0]

	setState(tracker, sla.StateSearching)
	hits, failedLevels, err := r.searchLevels(ctx, q, queryVec)
	if err != nil {
		return nil, err
	}

	setState(tracker, sla.StateAssembling)
	pack := r.assemble(ctx, q, hits)
	pack.FailedLevels = failedLevels

	if pack.Truncated {
		metrics.PacksTruncatedTotal.Inc()
	}

	// Never cache a partial result for a cancelled call.
	if ctx.Err() == nil {
		r.cache.Put(key, pack)
	}
	return pack, nil
}

// searchLevels fans out one search per requested level. Level-local
// failures degrade the result; only a full wipeout is fatal.
func (r *Router) searchLevels(ctx context.Context, q Query, queryVec []float32) ([]vecindex.Scored, []types.Level, error) {
	var (
		mu     sync.Mutex
		hits   []vecindex.Scored
		failed []types.Level
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, level := range q.Levels {
		g.Go(func() error {
			levelHits, err := r.index.Search(gctx, level, queryVec, q.Filter, q.K)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("level search failed",
					zap.String("level", string(level)),
					zap.Error(err))
				failed = append(failed, level)
				return nil
			}
			hits = append(hits, levelHits...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(failed) == len(q.Levels) {
		return nil, nil, fmt.Errorf("%w: %d levels", types.ErrAllLevelsFailed, len(q.Levels))
	}

	sortFailedLevels(failed)
	return hits, failed, nil
}

// assemble merges, deduplicates and budget-caps hits into a pack.
func (r *Router) assemble(ctx context.Context, q Query, hits []vecindex.Scored) *types.EvidencePack {
	sortHits(hits)

	pack := &types.EvidencePack{}
	seen := make(map[string]bool)
	var overflow []types.Chunk

	for i, hit := range hits {
		if seen[hit.Chunk.Code] {
			continue
		}
		if len(pack.Chunks) >= q.K {
			break
		}

		cost := hit.Chunk.TokenCount()
		if pack.Tokens+cost > q.MaxTokens {
			// Accumulation stops at the first over-budget chunk; the
			// whole ranked remainder is overflow, never packed out of
			// rank order.
			for _, rest := range hits[i:] {
				if seen[rest.Chunk.Code] {
					continue
				}
				seen[rest.Chunk.Code] = true
				chunk := rest.Chunk
				chunk.Score = rest.Score
				overflow = append(overflow, chunk)
			}
			break
		}

		seen[hit.Chunk.Code] = true
		chunk := hit.Chunk
		chunk.Score = hit.Score
		pack.Chunks = append(pack.Chunks, chunk)
		pack.Tokens += cost
	}

	if len(overflow) > 0 {
		pack.Truncated = true
		r.summarizeOverflow(ctx, q, pack, overflow)
	}
	return pack
}

// summarizeOverflow runs one best-effort compression pass over excluded
// chunks into the remaining allowance. Failure drops the overflow; the
// truncated flag stays set either way.
func (r *Router) summarizeOverflow(ctx context.Context, q Query, pack *types.EvidencePack, overflow []types.Chunk) {
	remaining := q.MaxTokens - pack.Tokens
	if r.summarizer == nil || remaining <= 0 {
		return
	}

	var b strings.Builder
	for _, c := range overflow {
		fmt.Fprintf(&b, "--- %s:%d-%d\n%s\n\n", c.RepoPath, c.LocStart, c.LocEnd, c.Code)
	}

	summary, err := r.summarizer.Summarize(ctx, b.String(), remaining)
	if err != nil {
		r.logger.Warn("overflow summarization failed", zap.Error(err))
		return
	}
	if summary == "" || types.EstimateTokens(summary) > remaining {
		return
	}

	pack.Chunks = append(pack.Chunks, types.Chunk{
		RepoPath:  SummaryPath,
		Level:     types.LevelSection,
		Code:      summary,
		LocStart:  1,
		LocEnd:    1,
		Timestamp: time.Now(),
	})
	pack.Tokens += types.EstimateTokens(summary)
}

func validate(q Query) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(q.Levels) == 0 {
		return fmt.Errorf("at least one level is required")
	}
	for _, lvl := range q.Levels {
		if _, err := types.ParseLevel(string(lvl)); err != nil {
			return err
		}
	}
	if q.K <= 0 {
		return fmt.Errorf("k must be positive")
	}
	if q.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return q.Filter.Validate()
}

// sortHits orders hits by score descending with a total deterministic
// tie-break, so identical queries against an unchanged index reproduce
// identical ordering.
func sortHits(hits []vecindex.Scored) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.RepoPath != b.Chunk.RepoPath {
			return a.Chunk.RepoPath < b.Chunk.RepoPath
		}
		if a.Chunk.LocStart != b.Chunk.LocStart {
			return a.Chunk.LocStart < b.Chunk.LocStart
		}
		return a.Chunk.Level < b.Chunk.Level
	})
}

func sortFailedLevels(levels []types.Level) {
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
}

func setState(t *sla.Tracker, s sla.State) {
	if t != nil {
		t.SetState(s)
	}
}
