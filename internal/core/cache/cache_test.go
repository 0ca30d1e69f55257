package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chartdex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/chartdex/internal/core/domain"
)

func testChunk(id, artifact, patient, artifactType string) domain.Chunk {
	return domain.Chunk{
		ID:           id,
		ArtifactID:   artifact,
		PatientID:    patient,
		ArtifactType: artifactType,
		OccurredAt:   time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		Text:         "chunk " + id,
	}
}

func TestCache_PutAndGet(t *testing.T) {
	c := New()

	chunk := testChunk("c1", "a1", "p1", "note")
	c.Put(chunk)

	got, ok := c.Get("c1")
	require.True(t, ok)
	assert.Equal(t, chunk, got)
	assert.Equal(t, 1, c.Len())

	// Re-put is idempotent
	c.Put(chunk)
	assert.Equal(t, 1, c.Len())
}

func TestCache_FilterByEachIndex(t *testing.T) {
	c := New()
	c.Put(testChunk("c1", "a1", "p1", "note"))
	c.Put(testChunk("c2", "a1", "p1", "lab"))
	c.Put(testChunk("c3", "a2", "p2", "note"))

	tests := []struct {
		name   string
		filter domain.ChunkFilter
		want   []string
	}{
		{"by patient", domain.ChunkFilter{PatientID: "p1"}, []string{"c1", "c2"}},
		{"by artifact", domain.ChunkFilter{ArtifactID: "a2"}, []string{"c3"}},
		{"by type", domain.ChunkFilter{ArtifactType: "note"}, []string{"c1", "c3"}},
		{"by day", domain.ChunkFilter{Day: "2024-01-15"}, []string{"c1", "c2", "c3"}},
		{"no criteria", domain.ChunkFilter{}, []string{"c1", "c2", "c3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Filter(tt.filter)
			sort.Strings(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCache_FilterIntersection(t *testing.T) {
	c := New()
	c.Put(testChunk("c1", "a1", "p1", "note"))
	c.Put(testChunk("c2", "a1", "p1", "lab"))
	c.Put(testChunk("c3", "a2", "p1", "note"))

	got := c.Filter(domain.ChunkFilter{PatientID: "p1", ArtifactType: "note"})
	sort.Strings(got)
	assert.Equal(t, []string{"c1", "c3"}, got)
}

func TestCache_FilterEmptyCriterionShortCircuits(t *testing.T) {
	c := New()
	c.Put(testChunk("c1", "a1", "p1", "note"))

	// One criterion matches, the other matches nothing. The result
	// must be empty, not the union.
	got := c.Filter(domain.ChunkFilter{PatientID: "p1", ArtifactType: "imaging"})
	assert.Empty(t, got)
}

func TestCache_RemoveCleansEmptyKeys(t *testing.T) {
	c := New()
	c.Put(testChunk("c1", "a1", "p1", "note"))
	c.Put(testChunk("c2", "a2", "p1", "note"))

	c.Remove("c1")

	assert.Equal(t, 1, c.Len())
	assert.False(t, c.HasArtifact("a1"), "empty artifact key should be removed")
	assert.True(t, c.HasArtifact("a2"))
	assert.Empty(t, c.Filter(domain.ChunkFilter{ArtifactID: "a1"}))

	// Removing an unknown id is a no-op
	c.Remove("missing")
	assert.Equal(t, 1, c.Len())
}

func TestCache_RemoveKeepsSharedKeys(t *testing.T) {
	c := New()
	c.Put(testChunk("c1", "a1", "p1", "note"))
	c.Put(testChunk("c2", "a1", "p1", "note"))

	c.Remove("c1")

	assert.True(t, c.HasArtifact("a1"))
	assert.Equal(t, []string{"c2"}, c.ChunksByArtifact("a1"))
}

func TestCache_Stats(t *testing.T) {
	c := New()
	c.Put(testChunk("c1", "a1", "p1", "note"))
	c.Put(testChunk("c2", "a1", "p1", "lab"))
	c.Put(testChunk("c3", "a2", "p2", "note"))

	stats := c.Stats()
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, 2, stats.Patients)
	assert.Equal(t, 2, stats.Artifacts)
	assert.Equal(t, 2, stats.ArtifactTypes)
	assert.Equal(t, 1, stats.Days)
}

func TestCache_Rebuild(t *testing.T) {
	store := memory.NewMetadataStore()
	ctx := context.Background()
	require.NoError(t, store.InsertBatch(ctx, []domain.Chunk{
		testChunk("c1", "a1", "p1", "note"),
		testChunk("c2", "a2", "p2", "lab"),
	}))

	c := New()
	c.Put(testChunk("stale", "aX", "pX", "note"))

	require.NoError(t, c.Rebuild(ctx, store))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("stale")
	assert.False(t, ok)
	_, ok = c.Get("c1")
	assert.True(t, ok)
}

func TestCache_SnapshotRoundTrip(t *testing.T) {
	c := New()
	c.Put(domain.Chunk{
		ID:           "c1",
		ArtifactID:   "a1",
		PatientID:    "p1",
		ArtifactType: "note",
		OccurredAt:   time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		Text:         "presenting with chest pain",
		CharStart:    0,
		CharEnd:      26,
		Relationships: []domain.Relationship{
			{RelatedChunkID: "c2", RelationType: "same_encounter", Weight: 0.8},
		},
		EnrichmentScore: 0.4,
	})
	c.Put(testChunk("c2", "a2", "p1", "lab"))

	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, c.Save(path))

	loaded := New()
	require.NoError(t, loaded.LoadFrom(path))

	assert.Equal(t, c.Stats(), loaded.Stats())
	orig, _ := c.Get("c1")
	got, ok := loaded.Get("c1")
	require.True(t, ok)
	assert.Equal(t, orig, got)

	// Indices survive the round trip, not just records
	ids := loaded.Filter(domain.ChunkFilter{PatientID: "p1", ArtifactType: "lab"})
	assert.Equal(t, []string{"c2"}, ids)
}

func TestCache_LoadFromRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "chunks": []}`), 0600))

	c := New()
	err := c.LoadFrom(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSnapshotVersion)
}

func TestCache_LoadFromMissingFile(t *testing.T) {
	c := New()
	err := c.LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
