package vecindex

import (
	"fmt"
	"strconv"
	"time"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// payloadFromChunk builds the stored payload for one chunk.
//
// The path is stored twice: repo_path carries a keyword index for exact
// matches (deletes), path_text carries a full-text index with a prefix
// tokenizer so path_prefix filters match leading substrings. commit_num
// is the numeric form of commit_id and only present when the commit
// identifier parses as a base-10 integer; it backs the commit range
// filter, which the store only supports over numeric fields.
func payloadFromChunk(c types.Chunk) map[string]any {
	p := map[string]any{
		"repo_path": c.RepoPath,
		"path_text": c.RepoPath,
		"level":     string(c.Level),
		"code":      c.Code,
		"loc_start": c.LocStart,
		"loc_end":   c.LocEnd,
		"commit_id": c.CommitID,
		"timestamp": c.Timestamp.Unix(),
	}
	if n, err := strconv.ParseInt(c.CommitID, 10, 64); err == nil {
		p["commit_num"] = n
	}
	return p
}

// chunkFromPayload reconstructs a chunk from a stored payload. Missing
// or mistyped fields are left zero rather than failing the whole hit.
func chunkFromPayload(payload map[string]any) types.Chunk {
	var c types.Chunk
	if v, ok := payload["repo_path"].(string); ok {
		c.RepoPath = v
	}
	if v, ok := payload["level"].(string); ok {
		c.Level = types.Level(v)
	}
	if v, ok := payload["code"].(string); ok {
		c.Code = v
	}
	if v, ok := payload["loc_start"].(float64); ok {
		c.LocStart = int(v)
	}
	if v, ok := payload["loc_end"].(float64); ok {
		c.LocEnd = int(v)
	}
	if v, ok := payload["commit_id"].(string); ok {
		c.CommitID = v
	}
	if v, ok := payload["timestamp"].(float64); ok {
		c.Timestamp = time.Unix(int64(v), 0).UTC()
	}
	return c
}

// buildFilter translates the structured filter (plus an optional level
// constraint) into the store's filter DSL. Filters are applied
// server-side before ranking to bound the result set. Commit bounds
// range over commit_num, so they must be base-10 integers.
func buildFilter(level types.Level, filter types.Filter) (map[string]any, error) {
	var must []map[string]any

	if level != "" {
		must = append(must, map[string]any{
			"key":   "level",
			"match": map[string]any{"value": string(level)},
		})
	}
	if filter.PathPrefix != "" {
		must = append(must, map[string]any{
			"key":   "path_text",
			"match": map[string]any{"text": filter.PathPrefix},
		})
	}
	if filter.CommitFrom != "" || filter.CommitTo != "" {
		rng := map[string]any{}
		if filter.CommitFrom != "" {
			n, err := strconv.ParseInt(filter.CommitFrom, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("commit_from %q is not a base-10 integer", filter.CommitFrom)
			}
			rng["gte"] = n
		}
		if filter.CommitTo != "" {
			n, err := strconv.ParseInt(filter.CommitTo, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("commit_to %q is not a base-10 integer", filter.CommitTo)
			}
			rng["lte"] = n
		}
		must = append(must, map[string]any{
			"key":   "commit_num",
			"range": rng,
		})
	}

	if len(must) == 0 {
		return map[string]any{}, nil
	}
	return map[string]any{"must": must}, nil
}
