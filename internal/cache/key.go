package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// Key identifies one logical query. Derived from a canonical,
// order-independent serialization of every query-shaping parameter, so
// two logically identical queries always collide and two different ones
// never should.
type Key [32]byte

// KeyFor derives the cache key for a query. Levels are sorted and filter
// fields serialized in a fixed order so parameter ordering in the
// request cannot change the key.
func KeyFor(prompt string, levels []types.Level, filter types.Filter, k, maxTokens int) Key {
	sorted := make([]string, len(levels))
	for i, lvl := range levels {
		sorted[i] = string(lvl)
	}
	sort.Strings(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "prompt=%q\n", prompt)
	fmt.Fprintf(&b, "levels=%s\n", strings.Join(sorted, ","))
	fmt.Fprintf(&b, "path_prefix=%q\n", filter.PathPrefix)
	fmt.Fprintf(&b, "commit_from=%q\n", filter.CommitFrom)
	fmt.Fprintf(&b, "commit_to=%q\n", filter.CommitTo)
	fmt.Fprintf(&b, "k=%d\n", k)
	fmt.Fprintf(&b, "max_tokens=%d\n", maxTokens)

	return sha256.Sum256([]byte(b.String()))
}
