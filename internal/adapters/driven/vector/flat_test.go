package vector

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(t.TempDir(), 3)
	require.NoError(t, err)
	return idx
}

func TestNew_RejectsBadDimension(t *testing.T) {
	_, err := New(t.TempDir(), 0)
	assert.Error(t, err)
}

func TestIndex_AddAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"c1", "c2", "c3"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		},
	))
	assert.Equal(t, 3, idx.Len())

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "c3", hits[1].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestIndex_AddReplacesExisting(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{0, 1, 0}}))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestIndex_AddDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Add(context.Background(), []string{"c1"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Len())
}

func TestIndex_AddLengthMismatch(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Add(context.Background(), []string{"c1", "c2"}, [][]float32{{1, 0, 0}})
	assert.Error(t, err)
}

func TestIndex_SearchDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"c1", "c2"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	))
	require.NoError(t, idx.Delete(ctx, []string{"c1", "unknown"}))

	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].ChunkID)
}

func TestIndex_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := New(dir, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx,
		[]string{"c1", "c2", "c3"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	))
	// Deleted vectors are compacted away on save
	require.NoError(t, idx.Delete(ctx, []string{"c2"}))
	require.NoError(t, idx.Save(ctx))

	restored, err := New(dir, 3)
	require.NoError(t, err)
	require.NoError(t, restored.Load(ctx))

	assert.Equal(t, 2, restored.Len())
	hits, err := restored.Search(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c3", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestIndex_LoadMissingFiles(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestIndex_LoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := New(dir, 3)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, []string{"c1"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, idx.Save(ctx))

	other, err := New(dir, 5)
	require.NoError(t, err)
	err = other.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_SearchSkipsZeroK(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(context.Background(), []string{"c1"}, [][]float32{{1, 0, 0}}))

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
