package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/codemem-mcp/pkg/types"
)

func pack(code string) *types.EvidencePack {
	return &types.EvidencePack{
		Chunks: []types.Chunk{{RepoPath: "a.go", Level: types.LevelFile, Code: code}},
		Tokens: types.EstimateTokens(code),
	}
}

func TestKeyFor_LevelOrderIndependent(t *testing.T) {
	a := KeyFor("find auth", []types.Level{types.LevelSig, types.LevelFile}, types.Filter{}, 10, 500)
	b := KeyFor("find auth", []types.Level{types.LevelFile, types.LevelSig}, types.Filter{}, 10, 500)
	assert.Equal(t, a, b)
}

func TestKeyFor_DistinguishesEveryParameter(t *testing.T) {
	base := KeyFor("p", []types.Level{types.LevelSig}, types.Filter{}, 10, 500)

	variants := []Key{
		KeyFor("q", []types.Level{types.LevelSig}, types.Filter{}, 10, 500),
		KeyFor("p", []types.Level{types.LevelFile}, types.Filter{}, 10, 500),
		KeyFor("p", []types.Level{types.LevelSig}, types.Filter{PathPrefix: "internal/"}, 10, 500),
		KeyFor("p", []types.Level{types.LevelSig}, types.Filter{CommitFrom: "a"}, 10, 500),
		KeyFor("p", []types.Level{types.LevelSig}, types.Filter{CommitTo: "z"}, 10, 500),
		KeyFor("p", []types.Level{types.LevelSig}, types.Filter{}, 11, 500),
		KeyFor("p", []types.Level{types.LevelSig}, types.Filter{}, 10, 501),
	}
	for i, v := range variants {
		assert.NotEqual(t, base, v, "variant %d should produce a different key", i)
	}
}

func TestKeyFor_FieldValuesDoNotBleed(t *testing.T) {
	// commit_from="x" vs commit_to="x" must not collide.
	a := KeyFor("p", nil, types.Filter{CommitFrom: "x"}, 1, 100)
	b := KeyFor("p", nil, types.Filter{CommitTo: "x"}, 1, 100)
	assert.NotEqual(t, a, b)
}

func TestCache_PutGet(t *testing.T) {
	c, err := New(4, time.Minute)
	require.NoError(t, err)

	key := KeyFor("p", nil, types.Filter{}, 1, 100)
	assert.Nil(t, c.Get(key))

	want := pack("func main() {}")
	c.Put(key, want)
	assert.Equal(t, want, c.Get(key))
}

func TestCache_TTLExpiry(t *testing.T) {
	c, err := New(4, 10*time.Minute)
	require.NoError(t, err)

	current := time.Unix(1700000000, 0)
	c.now = func() time.Time { return current }

	key := KeyFor("p", nil, types.Filter{}, 1, 100)
	c.Put(key, pack("x"))

	current = current.Add(10*time.Minute - time.Second)
	assert.NotNil(t, c.Get(key), "entry inside TTL should hit")

	current = current.Add(2 * time.Second)
	assert.Nil(t, c.Get(key), "entry past TTL should miss")
	assert.Equal(t, 0, c.Len(), "expired entry should be removed on read")
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(2, time.Minute)
	require.NoError(t, err)

	k1 := KeyFor("one", nil, types.Filter{}, 1, 100)
	k2 := KeyFor("two", nil, types.Filter{}, 1, 100)
	k3 := KeyFor("three", nil, types.Filter{}, 1, 100)

	c.Put(k1, pack("1"))
	c.Put(k2, pack("2"))
	require.NotNil(t, c.Get(k1)) // refresh k1 so k2 is the LRU victim

	c.Put(k3, pack("3"))
	assert.Nil(t, c.Get(k2), "least-recently-used entry should be evicted")
	assert.NotNil(t, c.Get(k1))
	assert.NotNil(t, c.Get(k3))
}

func TestCache_CapacityBound(t *testing.T) {
	c, err := New(8, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		key := KeyFor(fmt.Sprintf("prompt-%d", i), nil, types.Filter{}, 1, 100)
		c.Put(key, pack("x"))
	}
	assert.Equal(t, 8, c.Len())
}

func TestCache_DefaultsApplied(t *testing.T) {
	c, err := New(0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, c.ttl)
}
