package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/internal/chunker"
	"github.com/codemem/codemem-mcp/internal/embedder"
	"github.com/codemem/codemem-mcp/internal/vecindex"
	"github.com/codemem/codemem-mcp/pkg/types"
)

// countingEmbedder embeds everything to the same unit vector and can be
// told to fail after a number of successful batches.
type countingEmbedder struct {
	mu        sync.Mutex
	batches   int
	failAfter int // fail batches beyond this count; 0 = never fail
	texts     int
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := embedder.ValidateBatch(texts); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.batches++
	fail := e.failAfter > 0 && e.batches > e.failAfter
	if !fail {
		e.texts += len(texts)
	}
	e.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("%w: provider down", types.ErrEmbedFailed)
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }
func (e *countingEmbedder) Model() string   { return "counting" }
func (e *countingEmbedder) Close() error    { return nil }

// recordingIndex captures calls in order.
type recordingIndex struct {
	mu        sync.Mutex
	ops       []string
	deletes   []string
	keeps     [][]uint64
	upserts   [][]vecindex.Record
	deleteErr error
	upsertErr error
}

func (r *recordingIndex) DeleteByPath(ctx context.Context, repoPath string, keep []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.ops = append(r.ops, "delete")
	r.deletes = append(r.deletes, repoPath)
	r.keeps = append(r.keeps, keep)
	return nil
}

func (r *recordingIndex) Upsert(ctx context.Context, records []vecindex.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.ops = append(r.ops, "upsert")
	r.upserts = append(r.upserts, records)
	return nil
}

func newTestUpdater(emb embedder.Embedder, index UpdateIndex) *Updater {
	return New(chunker.New(), emb, index, embedder.MaxBatchSize, 2, zap.NewNop())
}

const sampleFile = `package auth

// Authenticate checks credentials.
func Authenticate(user string) error {
	return nil
}

func logout(user string) {}
`

func TestUpdate_IndexesChangedFile(t *testing.T) {
	emb := &countingEmbedder{}
	index := &recordingIndex{}
	u := newTestUpdater(emb, index)

	status, err := u.Update(context.Background(), "internal/auth/service.go", sampleFile, "abc123")
	require.NoError(t, err)
	assert.False(t, status.Skipped)
	assert.Greater(t, status.Chunks, 0)

	assert.Equal(t, []string{"upsert", "delete"}, index.ops, "new revision is written before stale points go")

	require.Len(t, index.deletes, 1)
	assert.Equal(t, "internal/auth/service.go", index.deletes[0])

	require.Len(t, index.upserts, 1)
	records := index.upserts[0]
	assert.Len(t, records, status.Chunks)
	for _, rec := range records {
		assert.Equal(t, "abc123", rec.Chunk.CommitID)
		assert.Equal(t, rec.Chunk.PointID(), rec.ID)
		assert.NotEmpty(t, rec.Vector)
	}

	require.Len(t, index.keeps, 1)
	ids := make([]uint64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	assert.Equal(t, ids, index.keeps[0], "stale delete spares every freshly written point")
}

func TestUpdate_EmbedFailureLeavesIndexUntouched(t *testing.T) {
	index := &recordingIndex{}
	u := newTestUpdater(failingEmbedder{}, index)

	_, err := u.Update(context.Background(), "a.go", sampleFile, "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedFailed)
	assert.Empty(t, index.deletes, "no delete when embedding failed")
	assert.Empty(t, index.upserts, "no upsert when embedding failed")
}

func TestUpdate_PartialBatchFailureIsAtomic(t *testing.T) {
	// Enough chunks to require multiple embedding batches; the second
	// batch fails, and nothing may reach the index.
	var b strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "func f%d() {}\n\n", i)
	}

	emb := &countingEmbedder{failAfter: 1}
	index := &recordingIndex{}
	u := newTestUpdater(emb, index)

	_, err := u.Update(context.Background(), "many.go", b.String(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedFailed)
	assert.Empty(t, index.upserts)
	assert.Empty(t, index.deletes)
}

func TestUpdate_SplitsIntoProviderSizedBatches(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "func f%d() {}\n\n", i)
	}

	emb := &countingEmbedder{}
	index := &recordingIndex{}
	u := newTestUpdater(emb, index)

	status, err := u.Update(context.Background(), "many.go", b.String(), "abc")
	require.NoError(t, err)
	assert.Greater(t, emb.batches, 1, "more chunks than one batch can carry")
	assert.Equal(t, status.Chunks, emb.texts)
}

func TestUpdate_SkipsBinaryFile(t *testing.T) {
	emb := &countingEmbedder{}
	index := &recordingIndex{}
	u := newTestUpdater(emb, index)

	status, err := u.Update(context.Background(), "blob.bin", "BIN\x00DATA", "abc")
	require.NoError(t, err)
	assert.True(t, status.Skipped)
	assert.Zero(t, status.Chunks)
	assert.Empty(t, index.deletes)
	assert.Empty(t, index.upserts)
	assert.Zero(t, emb.batches)
}

func TestUpdate_UpsertFailureLeavesPriorRecords(t *testing.T) {
	emb := &countingEmbedder{}
	index := &recordingIndex{upsertErr: errors.New("store down")}
	u := newTestUpdater(emb, index)

	_, err := u.Update(context.Background(), "a.go", sampleFile, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert")
	assert.Empty(t, index.deletes, "a failed upsert must not remove the previous revision")
}

func TestUpdate_StaleDeleteFailureSurfaces(t *testing.T) {
	emb := &countingEmbedder{}
	index := &recordingIndex{deleteErr: errors.New("store down")}
	u := newTestUpdater(emb, index)

	_, err := u.Update(context.Background(), "a.go", sampleFile, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete stale")
	assert.Len(t, index.upserts, 1, "the new revision is already indexed when the cleanup fails")
}

// failingEmbedder fails every batch.
type failingEmbedder struct{}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: provider down", types.ErrEmbedFailed)
}
func (failingEmbedder) Dimensions() int { return 2 }
func (failingEmbedder) Model() string   { return "failing" }
func (failingEmbedder) Close() error    { return nil }
