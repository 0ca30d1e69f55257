package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// On-disk layout: the vector file holds little-endian float32 vectors
// in slot order; the sidecar maps slots to chunk ids.
const (
	vectorsFile = "vectors.bin"
	sidecarFile = "vectors.meta.json"

	// sidecarVersion guards the on-disk schema.
	sidecarVersion = 1
)

// sidecar is the JSON metadata persisted next to the vector file.
// Both files must be loaded together.
type sidecar struct {
	Version   int      `json:"version"`
	Dimension int      `json:"dimension"`
	IDs       []string `json:"ids"`
	NextID    int      `json:"next_id"`
}

// Index is a flat, exact-search vector index over L2-normalised
// float32 vectors. Deletes tombstone slots; Save compacts them away.
type Index struct {
	mu sync.RWMutex

	dir       string
	dimension int

	vectors  [][]float32 // slot -> normalised vector, nil = tombstone
	slotIDs  []string    // slot -> chunk id, "" = tombstone
	idToSlot map[string]int
	nextID   int
}

// New creates a flat index for vectors of the given dimension,
// persisted under dir. The dimension is fixed at initialisation and
// every subsequent insert or query must match it.
func New(dir string, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	return &Index{
		dir:       dir,
		dimension: dimension,
		idToSlot:  make(map[string]int),
	}, nil
}

// Add inserts one vector per chunk id. Re-adding an existing id
// replaces its vector in place.
func (idx *Index) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("got %d ids for %d vectors", len(ids), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, vec := range vectors {
		if len(vec) != idx.dimension {
			return fmt.Errorf("vector for %s has dimension %d, index wants %d: %w",
				ids[i], len(vec), idx.dimension, domain.ErrDimensionMismatch)
		}
	}

	for i, vec := range vectors {
		normalised := normalise(vec)
		if slot, ok := idx.idToSlot[ids[i]]; ok {
			idx.vectors[slot] = normalised
			continue
		}
		idx.vectors = append(idx.vectors, normalised)
		idx.slotIDs = append(idx.slotIDs, ids[i])
		idx.idToSlot[ids[i]] = idx.nextID
		idx.nextID++
	}
	return nil
}

// Delete tombstones vectors for the given chunk ids.
func (idx *Index) Delete(_ context.Context, ids []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range ids {
		slot, ok := idx.idToSlot[id]
		if !ok {
			continue
		}
		idx.vectors[slot] = nil
		idx.slotIDs[slot] = ""
		delete(idx.idToSlot, id)
	}
	return nil
}

// Search returns the k nearest neighbours by cosine similarity.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.dimension {
		return nil, fmt.Errorf("query has dimension %d, index wants %d: %w",
			len(query), idx.dimension, domain.ErrDimensionMismatch)
	}
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	q := normalise(query)

	hits := make([]driven.VectorHit, 0, len(idx.vectors))
	for slot, vec := range idx.vectors {
		if vec == nil {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    idx.slotIDs[slot],
			Similarity: dot(q, vec),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Save flushes the index to disk, compacting tombstoned slots.
// The vector file and sidecar are written together through temp files.
func (idx *Index) Save(_ context.Context) error {
	idx.mu.RLock()

	live := 0
	for _, vec := range idx.vectors {
		if vec != nil {
			live++
		}
	}

	meta := sidecar{
		Version:   sidecarVersion,
		Dimension: idx.dimension,
		IDs:       make([]string, 0, live),
		NextID:    live,
	}
	buf := make([]byte, 0, live*idx.dimension*4)
	for slot, vec := range idx.vectors {
		if vec == nil {
			continue
		}
		meta.IDs = append(meta.IDs, idx.slotIDs[slot])
		buf = appendFloat32s(buf, vec)
	}
	idx.mu.RUnlock()

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}

	if err := writeAtomic(filepath.Join(idx.dir, vectorsFile), buf); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}
	if err := writeAtomic(filepath.Join(idx.dir, sidecarFile), metaJSON); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// Load restores the index from disk. The sidecar's dimension must
// match the configured dimension and the vector file must agree with
// the sidecar's id count; on any disagreement the load is rejected.
func (idx *Index) Load(_ context.Context) error {
	metaJSON, err := os.ReadFile(filepath.Join(idx.dir, sidecarFile))
	if err != nil {
		return fmt.Errorf("read sidecar: %w", err)
	}

	var meta sidecar
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return fmt.Errorf("parse sidecar: %w", err)
	}
	if meta.Version != sidecarVersion {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrSnapshotVersion, meta.Version, sidecarVersion)
	}
	if meta.Dimension != idx.dimension {
		return fmt.Errorf("persisted dimension %d does not match configured %d: %w",
			meta.Dimension, idx.dimension, domain.ErrDimensionMismatch)
	}

	data, err := os.ReadFile(filepath.Join(idx.dir, vectorsFile))
	if err != nil {
		return fmt.Errorf("read vector file: %w", err)
	}
	want := len(meta.IDs) * meta.Dimension * 4
	if len(data) != want {
		return fmt.Errorf("vector file is %d bytes, sidecar expects %d", len(data), want)
	}

	vectors := make([][]float32, len(meta.IDs))
	idToSlot := make(map[string]int, len(meta.IDs))
	for slot := range meta.IDs {
		vectors[slot] = readFloat32s(data[slot*meta.Dimension*4:], meta.Dimension)
		idToSlot[meta.IDs[slot]] = slot
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = vectors
	idx.slotIDs = meta.IDs
	idx.idToSlot = idToSlot
	idx.nextID = meta.NextID
	return nil
}

// Dimensions returns the configured vector size.
func (idx *Index) Dimensions() int {
	return idx.dimension
}

// Len returns the number of live vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idToSlot)
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

// normalise returns an L2-normalised copy of v. A zero vector is
// returned unchanged.
func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func appendFloat32s(buf []byte, vec []float32) []byte {
	for _, f := range vec {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func readFloat32s(data []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
