package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func storedChunk(id, artifact, patient, artifactType string, occurredAt time.Time) domain.Chunk {
	return domain.Chunk{
		ID:           id,
		ArtifactID:   artifact,
		PatientID:    patient,
		ArtifactType: artifactType,
		OccurredAt:   occurredAt,
		Author:       "dr-lee",
		Text:         "chunk " + id,
		CharStart:    0,
		CharEnd:      10,
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunk := storedChunk("c1", "a1", "p1", "note", time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC))
	chunk.Relationships = []domain.Relationship{
		{RelatedChunkID: "c2", RelationType: "same_encounter", Weight: 0.8},
	}
	chunk.EnrichmentScore = 0.4
	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{chunk}))

	got, err := store.GetByIDs(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, chunk.ID, got[0].ID)
	assert.Equal(t, chunk.ArtifactID, got[0].ArtifactID)
	assert.Equal(t, chunk.PatientID, got[0].PatientID)
	assert.Equal(t, chunk.Author, got[0].Author)
	assert.Equal(t, chunk.Text, got[0].Text)
	assert.True(t, chunk.OccurredAt.Equal(got[0].OccurredAt))
	assert.Equal(t, chunk.Relationships, got[0].Relationships)
	assert.Equal(t, chunk.EnrichmentScore, got[0].EnrichmentScore)
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := storedChunk("c1", "a1", "p1", "note", time.Now().UTC())
	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{original}))

	// Same id with different text: the original record wins.
	altered := original
	altered.Text = "altered"
	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{altered}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetByIDs(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, original.Text, got[0].Text)
}

func TestStore_FilterCriteria(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	jan15 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	jan16 := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{
		storedChunk("c1", "a1", "p1", "note", jan15),
		storedChunk("c2", "a1", "p1", "lab", jan16),
		storedChunk("c3", "a2", "p2", "note", jan15),
	}))

	tests := []struct {
		name   string
		filter domain.ChunkFilter
		want   []string
	}{
		{"by patient", domain.ChunkFilter{PatientID: "p1"}, []string{"c2", "c1"}},
		{"by artifact", domain.ChunkFilter{ArtifactID: "a2"}, []string{"c3"}},
		{"by type", domain.ChunkFilter{ArtifactType: "note"}, []string{"c3", "c1"}},
		{"by day", domain.ChunkFilter{Day: "2024-01-15"}, []string{"c3", "c1"}},
		{"combined", domain.ChunkFilter{PatientID: "p1", ArtifactType: "note"}, []string{"c1"}},
		{"no match", domain.ChunkFilter{PatientID: "p9"}, nil},
		{"all", domain.ChunkFilter{}, []string{"c2", "c3", "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Filter(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_FilterOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	same := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{
		storedChunk("c1", "a1", "p1", "note", same),
		storedChunk("c2", "a1", "p1", "note", same),
		storedChunk("c3", "a1", "p1", "note", same.Add(time.Hour)),
	}))

	ids, err := store.Filter(ctx, domain.ChunkFilter{})
	require.NoError(t, err)

	// Newest first; equal timestamps break ties by id descending.
	assert.Equal(t, []string{"c3", "c2", "c1"}, ids)
}

func TestStore_GetByIDsOmitsUnknown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{
		storedChunk("c1", "a1", "p1", "note", time.Now().UTC()),
	}))

	got, err := store.GetByIDs(ctx, []string{"c1", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = store.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_DeleteByIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{
		storedChunk("c1", "a1", "p1", "note", time.Now().UTC()),
		storedChunk("c2", "a1", "p1", "note", time.Now().UTC()),
	}))

	deleted, err := store.DeleteByIDs(ctx, []string{"c1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	deleted, err = store.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{
		storedChunk("c1", "a1", "p1", "note", time.Now().UTC()),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
