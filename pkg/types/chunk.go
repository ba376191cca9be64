package types

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"
)

// TokensPerChar is the heuristic for estimating tokens (chars/4).
const TokensPerChar = 4

// Chunk is a contiguous span of source code extracted at one level.
type Chunk struct {
	RepoPath string `json:"repo_path"`
	Level    Level  `json:"level"`
	Code     string `json:"code"`
	LocStart int    `json:"loc_start"`
	LocEnd   int    `json:"loc_end"`

	// CommitID is the opaque version identifier of the source at
	// extraction time.
	CommitID  string    `json:"commit_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Score is the similarity score assigned during retrieval. Zero for
	// chunks that have not been through a search.
	Score float64 `json:"score,omitempty"`
}

// TokenCount estimates the number of tokens in the chunk's code.
func (c *Chunk) TokenCount() int {
	return EstimateTokens(c.Code)
}

// PointID derives the deterministic vector-store point ID for the chunk:
// the first 8 bytes of sha256(path:level:code) as a uint64, so that
// re-extracting identical content supersedes the same point in place.
func (c *Chunk) PointID() uint64 {
	h := sha256.New()
	h.Write([]byte(c.RepoPath))
	h.Write([]byte{':'})
	h.Write([]byte(c.Level))
	h.Write([]byte{':'})
	h.Write([]byte(c.Code))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Validate checks structural chunk validity.
func (c *Chunk) Validate() error {
	if c.Code == "" {
		return errors.New("chunk code cannot be empty")
	}
	if c.LocStart <= 0 || c.LocEnd <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.LocStart > c.LocEnd {
		return errors.New("loc_start must not exceed loc_end")
	}
	if _, err := ParseLevel(string(c.Level)); err != nil {
		return err
	}
	return nil
}

// EvidencePack is the ranked, budget-capped retrieval result.
type EvidencePack struct {
	// Chunks are ordered most-relevant first.
	Chunks []Chunk `json:"chunks"`

	// Truncated is true iff some relevant content was not included
	// verbatim (budget overflow, summarized or dropped).
	Truncated bool `json:"truncated"`

	// Tokens is the estimated token total of all chunks in the pack.
	Tokens int `json:"tokens"`

	// FailedLevels lists levels whose search failed and was skipped.
	FailedLevels []Level `json:"failed_levels,omitempty"`
}

// EstimateTokens estimates the number of tokens in a string.
func EstimateTokens(text string) int {
	return len(text) / TokensPerChar
}
