// Package keyword provides an in-memory lexical index adapter with
// JSON persistence. It supplies the secondary keyword signal for
// hybrid scoring; retrieval correctness never depends on it.
package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.KeywordIndex = (*Index)(nil)

const (
	indexFile = "keywords.json"

	// indexVersion guards the on-disk schema.
	indexVersion = 1

	// k1 is the BM25 term-frequency saturation constant.
	k1 = 1.2
)

// persisted is the on-disk layout: term postings as arrays of pairs.
type persisted struct {
	Version  int            `json:"version"`
	Postings []postingEntry `json:"postings"`
	DocLens  []docLenEntry  `json:"doc_lens"`
}

type postingEntry struct {
	Term string         `json:"term"`
	TFs  map[string]int `json:"tfs"`
}

type docLenEntry struct {
	ChunkID string `json:"chunk_id"`
	Len     int    `json:"len"`
}

// Index is an inverted index over chunk text with BM25-style scoring.
type Index struct {
	mu sync.RWMutex

	dir      string
	postings map[string]map[string]int // term -> chunk id -> tf
	docLens  map[string]int            // chunk id -> token count
}

// New creates a keyword index persisted under dir, loading any
// existing index file.
func New(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	idx := &Index{
		dir:      dir,
		postings: make(map[string]map[string]int),
		docLens:  make(map[string]int),
	}
	if err := idx.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return idx, nil
}

// AddDocuments adds or updates chunks in the index.
func (idx *Index) AddDocuments(_ context.Context, chunks []domain.Chunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, chunk := range chunks {
		idx.remove(chunk.ID)

		tokens := tokenise(chunk.Text)
		idx.docLens[chunk.ID] = len(tokens)
		for _, term := range tokens {
			tfs, ok := idx.postings[term]
			if !ok {
				tfs = make(map[string]int)
				idx.postings[term] = tfs
			}
			tfs[chunk.ID]++
		}
	}
	return nil
}

// Delete removes chunks from the index.
func (idx *Index) Delete(_ context.Context, ids []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range ids {
		idx.remove(id)
	}
	return nil
}

// Search scores chunks against the query terms, best first.
func (idx *Index) Search(_ context.Context, query string, limit int) ([]driven.KeywordHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := tokenise(query)
	if len(terms) == 0 || limit <= 0 {
		return []driven.KeywordHit{}, nil
	}

	n := float64(len(idx.docLens))
	scores := make(map[string]float64)
	for _, term := range terms {
		tfs, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(len(tfs))+0.5)/(float64(len(tfs))+0.5))
		for id, tf := range tfs {
			scores[id] += idf * float64(tf) / (float64(tf) + k1)
		}
	}

	hits := make([]driven.KeywordHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, driven.KeywordHit{ChunkID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Save flushes the index to disk.
func (idx *Index) Save(_ context.Context) error {
	idx.mu.RLock()

	out := persisted{
		Version:  indexVersion,
		Postings: make([]postingEntry, 0, len(idx.postings)),
		DocLens:  make([]docLenEntry, 0, len(idx.docLens)),
	}
	for term, tfs := range idx.postings {
		out.Postings = append(out.Postings, postingEntry{Term: term, TFs: tfs})
	}
	for id, l := range idx.docLens {
		out.DocLens = append(out.DocLens, docLenEntry{ChunkID: id, Len: l})
	}
	idx.mu.RUnlock()

	sort.Slice(out.Postings, func(i, j int) bool { return out.Postings[i].Term < out.Postings[j].Term })
	sort.Slice(out.DocLens, func(i, j int) bool { return out.DocLens[i].ChunkID < out.DocLens[j].ChunkID })

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal keyword index: %w", err)
	}

	path := filepath.Join(idx.dir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write keyword index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit keyword index: %w", err)
	}
	return nil
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

// load reads the persisted index if present.
func (idx *Index) load() error {
	data, err := os.ReadFile(filepath.Join(idx.dir, indexFile))
	if err != nil {
		return err
	}

	var in persisted
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse keyword index: %w", err)
	}
	if in.Version != indexVersion {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrSnapshotVersion, in.Version, indexVersion)
	}

	idx.postings = make(map[string]map[string]int, len(in.Postings))
	for _, entry := range in.Postings {
		idx.postings[entry.Term] = entry.TFs
	}
	idx.docLens = make(map[string]int, len(in.DocLens))
	for _, entry := range in.DocLens {
		idx.docLens[entry.ChunkID] = entry.Len
	}
	return nil
}

// remove drops one chunk from all postings. Caller holds the lock.
func (idx *Index) remove(id string) {
	if _, ok := idx.docLens[id]; !ok {
		return
	}
	delete(idx.docLens, id)
	for term, tfs := range idx.postings {
		delete(tfs, id)
		if len(tfs) == 0 {
			delete(idx.postings, term)
		}
	}
}

// tokenise lowercases and splits on non-alphanumeric runes.
func tokenise(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
