package services

import (
	"context"
	"io/fs"

	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
)

// fakeEmbedder returns deterministic unit vectors.
type fakeEmbedder struct {
	dims     int
	batchErr error
	embedErr error
	calls    int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dims: 4}
}

func (e *fakeEmbedder) vector() []float32 {
	v := make([]float32, e.dims)
	v[0] = 1
	return v
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if e.embedErr != nil {
		return nil, e.embedErr
	}
	return e.vector(), nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.batchErr != nil {
		return nil, e.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector()
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int            { return e.dims }
func (e *fakeEmbedder) ModelName() string          { return "fake" }
func (e *fakeEmbedder) Ping(context.Context) error { return nil }
func (e *fakeEmbedder) Close() error               { return nil }

// fakeVectorIndex records writes and serves scripted search hits.
type fakeVectorIndex struct {
	dims    int
	stored  map[string][]float32
	hits    []driven.VectorHit
	addErr  error
	saveErr error
	loadErr error
	saves   int
	deleted []string
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{
		dims:    4,
		stored:  make(map[string][]float32),
		loadErr: fs.ErrNotExist,
	}
}

func (v *fakeVectorIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if v.addErr != nil {
		return v.addErr
	}
	for i, id := range ids {
		v.stored[id] = vectors[i]
	}
	return nil
}

func (v *fakeVectorIndex) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(v.stored, id)
		v.deleted = append(v.deleted, id)
	}
	return nil
}

func (v *fakeVectorIndex) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	hits := v.hits
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (v *fakeVectorIndex) Save(context.Context) error {
	v.saves++
	return v.saveErr
}

func (v *fakeVectorIndex) Load(context.Context) error { return v.loadErr }
func (v *fakeVectorIndex) Dimensions() int            { return v.dims }
func (v *fakeVectorIndex) Len() int                   { return len(v.stored) }
func (v *fakeVectorIndex) Close() error               { return nil }

// fakeKeywordIndex records writes and serves scripted hits.
type fakeKeywordIndex struct {
	docs      map[string]string
	hits      []driven.KeywordHit
	addErr    error
	searchErr error
	saves     int
}

func newFakeKeywordIndex() *fakeKeywordIndex {
	return &fakeKeywordIndex{docs: make(map[string]string)}
}

func (k *fakeKeywordIndex) AddDocuments(_ context.Context, chunks []domain.Chunk) error {
	if k.addErr != nil {
		return k.addErr
	}
	for _, chunk := range chunks {
		k.docs[chunk.ID] = chunk.Text
	}
	return nil
}

func (k *fakeKeywordIndex) Delete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(k.docs, id)
	}
	return nil
}

func (k *fakeKeywordIndex) Search(_ context.Context, _ string, limit int) ([]driven.KeywordHit, error) {
	if k.searchErr != nil {
		return nil, k.searchErr
	}
	hits := k.hits
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (k *fakeKeywordIndex) Save(context.Context) error {
	k.saves++
	return nil
}

func (k *fakeKeywordIndex) Close() error { return nil }

// failingMetadataStore wraps a real store with a forced InsertBatch error.
type failingMetadataStore struct {
	driven.MetadataStore
	insertErr error
}

func (s *failingMetadataStore) InsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.MetadataStore.InsertBatch(ctx, chunks)
}
