package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

// fakeIndexer records calls and returns canned results.
type fakeIndexer struct {
	indexed   []domain.Chunk
	reindexed string
	deletedID string
	result    domain.IndexingResult
	stats     domain.IndexStats
	err       error
}

func (f *fakeIndexer) Index(_ context.Context, chunks []domain.Chunk) domain.IndexingResult {
	f.indexed = chunks
	return f.result
}

func (f *fakeIndexer) ReindexArtifact(_ context.Context, artifactID string, chunks []domain.Chunk) (domain.IndexingResult, error) {
	f.reindexed = artifactID
	f.indexed = chunks
	return f.result, f.err
}

func (f *fakeIndexer) DeleteArtifact(_ context.Context, artifactID string) (int, error) {
	f.deletedID = artifactID
	return 2, f.err
}

func (f *fakeIndexer) Stats() domain.IndexStats { return f.stats }

// fakeRetriever returns a canned retrieval result.
type fakeRetriever struct {
	query  domain.ParsedQuery
	k      int
	opts   domain.RetrieveOptions
	result *domain.RetrievalResult
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, query domain.ParsedQuery, k int, opts domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	f.query = query
	f.k = k
	f.opts = opts
	return f.result, f.err
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores flag-bound package vars between Execute calls,
// since pflag values persist across runs.
func resetFlags() {
	indexFile = ""
	reindexFile = ""
	searchLimit = 10
	searchHops = 0
	searchBoost = 0
	searchEnriched = false
	searchKeyword = false
	searchPatient = ""
	searchArtifact = ""
	searchType = ""
	searchDay = ""
	searchJSON = false
	verboseFlag = false
}

func writeChunksFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "1.2.3"
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")
	assert.NoError(t, err)
	assert.Contains(t, out, "chartdex version 1.2.3")
}

func TestIndexCmd_LoadsAndIndexesChunks(t *testing.T) {
	idx := &fakeIndexer{result: domain.IndexingResult{Success: true, ChunksIndexed: 2, EmbeddingsGenerated: 2}}
	SetServices(idx, nil)

	path := writeChunksFile(t, `[
		{"id": "c1", "artifact_id": "a1", "patient_id": "p1",
		 "artifact_type": "note", "occurred_at": "2024-01-15T09:30:00Z",
		 "text": "chest pain"},
		{"artifact_id": "a1", "patient_id": "p1",
		 "artifact_type": "note", "occurred_at": "2024-01-15T09:31:00Z",
		 "text": "started aspirin",
		 "relationships": [{"related_chunk_id": "c1", "relation_type": "same_encounter", "weight": 0.8}]}
	]`)

	out, err := execute(t, "index", "--file", path)
	require.NoError(t, err)

	require.Len(t, idx.indexed, 2)
	assert.Equal(t, "c1", idx.indexed[0].ID)
	assert.NotEmpty(t, idx.indexed[1].ID, "missing ids are assigned")
	require.Len(t, idx.indexed[1].Relationships, 1)
	assert.Equal(t, "c1", idx.indexed[1].Relationships[0].RelatedChunkID)
	assert.Contains(t, out, "2 chunks")
}

func TestIndexCmd_ReportsErrors(t *testing.T) {
	idx := &fakeIndexer{result: domain.IndexingResult{
		Success:       false,
		ChunksIndexed: 1,
		Errors: []domain.IndexError{
			{ItemID: "c2", Stage: domain.PhaseValidate, Message: "invalid chunk"},
		},
	}}
	SetServices(idx, nil)

	path := writeChunksFile(t, `[{"id": "c1", "text": "x", "occurred_at": "2024-01-15T09:30:00Z"}]`)

	out, err := execute(t, "index", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "completed with errors")
	assert.Contains(t, out, "c2")
}

func TestIndexCmd_BadFile(t *testing.T) {
	SetServices(&fakeIndexer{}, nil)

	_, err := execute(t, "index", "--file", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReindexCmd(t *testing.T) {
	idx := &fakeIndexer{result: domain.IndexingResult{Success: true, ChunksIndexed: 1, EmbeddingsGenerated: 1}}
	SetServices(idx, nil)

	path := writeChunksFile(t, `[{"id": "c9", "text": "replacement", "occurred_at": "2024-01-15T09:30:00Z"}]`)

	_, err := execute(t, "reindex", "a1", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "a1", idx.reindexed)
	require.Len(t, idx.indexed, 1)
	assert.Equal(t, "c9", idx.indexed[0].ID)
}

func TestReindexCmd_UnknownArtifact(t *testing.T) {
	SetServices(&fakeIndexer{err: domain.ErrNotFound}, nil)

	_, err := execute(t, "reindex", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not indexed")
}

func TestDeleteCmd(t *testing.T) {
	idx := &fakeIndexer{}
	SetServices(idx, nil)

	out, err := execute(t, "delete", "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", idx.deletedID)
	assert.Contains(t, out, "Deleted 2 chunks")
}

func TestSearchCmd_PassesOptionsThrough(t *testing.T) {
	ret := &fakeRetriever{result: &domain.RetrievalResult{
		Candidates: []domain.RetrievalCandidate{
			{
				Chunk:           domain.Chunk{ID: "c1", ArtifactID: "a1", ArtifactType: "note", Text: "chest pain"},
				SimilarityScore: 0.9,
			},
			{
				Chunk:              domain.Chunk{ID: "c3", ArtifactID: "a3", ArtifactType: "note", Text: "related"},
				SimilarityScore:    0.6,
				HopDistance:        1,
				RelatedArtifactIDs: []string{"a1"},
			},
		},
		HopStats: []domain.HopLevelStats{{Hop: 1, ChunksDiscovered: 1, EdgesFollowed: 2}},
	}}
	SetServices(nil, ret)

	out, err := execute(t, "search", "chest", "pain",
		"--hops", "2", "--limit", "5", "--patient", "p1", "--enriched")
	require.NoError(t, err)

	assert.Equal(t, "chest pain", ret.query.Text)
	assert.Equal(t, "p1", ret.query.Filter.PatientID)
	assert.Equal(t, 5, ret.k)
	assert.True(t, ret.opts.EnableMultiHop)
	assert.Equal(t, 2, ret.opts.MaxHops)
	assert.True(t, ret.opts.UseEnrichedText)

	assert.Contains(t, out, "c1")
	assert.Contains(t, out, "hop 1 via a1")
	assert.Contains(t, out, "1 chunks discovered")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	ret := &fakeRetriever{result: &domain.RetrievalResult{
		Candidates: []domain.RetrievalCandidate{
			{Chunk: domain.Chunk{ID: "c1", Text: "x"}, SimilarityScore: 0.9},
		},
	}}
	SetServices(nil, ret)

	out, err := execute(t, "search", "query", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Candidates"`)
	assert.Contains(t, out, `"c1"`)
}

func TestSearchCmd_RejectsBadHops(t *testing.T) {
	SetServices(nil, &fakeRetriever{})

	_, err := execute(t, "search", "query", "--hops", "7")
	assert.Error(t, err)
}

func TestStatsCmd(t *testing.T) {
	SetServices(&fakeIndexer{stats: domain.IndexStats{
		TotalChunks: 3, Patients: 1, Artifacts: 2, ArtifactTypes: 2, Days: 1,
	}}, nil)

	out, err := execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks:         3")
	assert.Contains(t, out, "Patients:       1")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", snippet("short   text", 120))
	assert.Equal(t, "abcde...", snippet("abcdefgh", 5))
}
