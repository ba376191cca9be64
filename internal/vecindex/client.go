// Package vecindex is a minimal REST client to a Qdrant-compatible
// vector store. It assumes cosine distance over one collection holding
// every indexed record, applies payload filters server-side, and retries
// transient failures with exponential backoff.
package vecindex

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

// Defaults for the store client.
const (
	DefaultTimeout    = 3 * time.Second
	DefaultMaxRetries = 3

	initialBackoff = 100 * time.Millisecond
	maxBackoff     = time.Second
)

// Record is the persisted unit in the vector index: a vector plus the
// chunk payload it was derived from.
type Record struct {
	ID     uint64
	Vector []float32
	Chunk  types.Chunk
}

// Scored is one search hit: the stored chunk and its cosine similarity.
type Scored struct {
	Chunk types.Chunk
	Score float64
}

// Config holds the store connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the remote ANN store.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	maxRetries int
	client     *http.Client
	logger     *zap.Logger
}

// NewClient creates a vector store client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		maxRetries: retries,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// EnsureCollection creates the collection if missing and the payload
// indexes the filter DSL depends on. Qdrant returns OK when the
// collection already exists with the same schema, and index creation is
// idempotent.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", c.collection), body, nil); err != nil {
		return err
	}

	// level and repo_path take exact matches; path_text takes full-text
	// prefix matches for path_prefix filters; commit_num takes numeric
	// range filters for commit bounds.
	indexes := []map[string]any{
		{"field_name": "level", "field_schema": "keyword"},
		{"field_name": "repo_path", "field_schema": "keyword"},
		{"field_name": "path_text", "field_schema": map[string]any{
			"type":          "text",
			"tokenizer":     "prefix",
			"min_token_len": 1,
			"max_token_len": 256,
			"lowercase":     false,
		}},
		{"field_name": "commit_num", "field_schema": "integer"},
	}
	indexPath := fmt.Sprintf("/collections/%s/index?wait=true", c.collection)
	for _, idx := range indexes {
		if err := c.call(ctx, http.MethodPut, indexPath, idx, nil); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a filtered similarity search at one level and returns hits
// ordered by descending score.
func (c *Client) Search(ctx context.Context, level types.Level, vector []float32, filter types.Filter, k int) ([]Scored, error) {
	if k <= 0 {
		k = 10
	}
	cond, err := buildFilter(level, filter)
	if err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"filter":       cond,
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.call(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	hits := make([]Scored, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Scored{Chunk: chunkFromPayload(r.Payload), Score: r.Score})
	}
	return hits, nil
}

// Upsert writes records to the store, superseding any points with the
// same IDs.
func (c *Client) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, rec := range records {
		points[i] = map[string]any{
			"id":      rec.ID,
			"vector":  rec.Vector,
			"payload": payloadFromChunk(rec.Chunk),
		}
	}
	body := map[string]any{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.call(ctx, http.MethodPut, path, body, nil)
}

// Delete removes all points matching the filter.
func (c *Client) Delete(ctx context.Context, filter types.Filter) error {
	cond, err := buildFilter("", filter)
	if err != nil {
		return err
	}
	body := map[string]any{"filter": cond}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.call(ctx, http.MethodPost, path, body, nil)
}

// DeleteByPath removes records for one exact repo path, sparing keep.
// Re-indexing upserts the new points first and then calls this with
// their IDs, so the file is never absent from the index in between.
func (c *Client) DeleteByPath(ctx context.Context, repoPath string, keep []uint64) error {
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "repo_path", "match": map[string]any{"value": repoPath}},
		},
	}
	if len(keep) > 0 {
		filter["must_not"] = []map[string]any{
			{"has_id": keep},
		}
	}
	body := map[string]any{"filter": filter}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.call(ctx, http.MethodPost, path, body, nil)
}

// CollectionInfo reports the stored point count.
func (c *Client) CollectionInfo(ctx context.Context) (int64, error) {
	var resp struct {
		Result struct {
			PointsCount int64 `json:"points_count"`
		} `json:"result"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", c.collection), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Result.PointsCount, nil
}

// call performs one store request with bounded retry. Transient failures
// (transport errors, 429, 5xx) are retried; structural 4xx responses
// surface immediately. Exhausted retries yield ErrVectorStoreUnavailable.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.status < 500 && statusErr.status != http.StatusTooManyRequests {
			return err
		}

		if attempt < c.maxRetries-1 {
			c.logger.Debug("vector store call retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}
	}

	return fmt.Errorf("%w: %s %s: %v", types.ErrVectorStoreUnavailable, method, path, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return &statusError{status: resp.StatusCode, body: string(msg)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// statusError carries a non-2xx store response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("store returned status %d: %s", e.status, e.body)
}
