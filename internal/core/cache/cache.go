// Package cache implements the in-memory metadata cache: four
// coordinated secondary indices (by patient, by artifact, by artifact
// type, by calendar day) over chunk ids, plus a direct id-to-record
// map for point lookups.
//
// The cache is advisory and derived: the metadata store is always
// authoritative, and the cache must be fully reconstructable by
// replaying the store's contents. Its persisted snapshot is only a
// warm-start optimisation, never a durability guarantee.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
)

// idSet is a set of chunk ids.
type idSet map[string]struct{}

// Cache holds the four secondary indices and the chunk-record map.
// Concurrent reads are safe at any time; writes are serialised by
// the indexing pipeline (one indexing call at a time).
type Cache struct {
	mu sync.RWMutex

	byPatient  map[string]idSet
	byArtifact map[string]idSet
	byType     map[string]idSet
	byDay      map[string]idSet

	records map[string]domain.Chunk
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		byPatient:  make(map[string]idSet),
		byArtifact: make(map[string]idSet),
		byType:     make(map[string]idSet),
		byDay:      make(map[string]idSet),
		records:    make(map[string]domain.Chunk),
	}
}

// Put inserts a chunk into all four indices and the record map.
// Re-putting an existing id is idempotent.
func (c *Cache) Put(chunk domain.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[chunk.ID] = chunk
	addTo(c.byPatient, chunk.PatientID, chunk.ID)
	addTo(c.byArtifact, chunk.ArtifactID, chunk.ID)
	addTo(c.byType, chunk.ArtifactType, chunk.ID)
	addTo(c.byDay, chunk.Day(), chunk.ID)
}

// Remove deletes a chunk id from all indices it belongs to, removing
// keys whose sets become empty so the cache does not accumulate dead
// keys. Removal is atomic across the four indices.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chunk, ok := c.records[id]
	if !ok {
		return
	}
	delete(c.records, id)
	removeFrom(c.byPatient, chunk.PatientID, id)
	removeFrom(c.byArtifact, chunk.ArtifactID, id)
	removeFrom(c.byType, chunk.ArtifactType, id)
	removeFrom(c.byDay, chunk.Day(), id)
}

// Get returns the cached record for a chunk id.
func (c *Cache) Get(id string) (domain.Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chunk, ok := c.records[id]
	return chunk, ok
}

// Len returns the number of cached chunks.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Filter returns the ids matching all set criteria. Criteria sets are
// computed independently and intersected; an empty set for any single
// criterion short-circuits to an empty overall result.
func (c *Cache) Filter(filter domain.ChunkFilter) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sets []idSet
	if filter.PatientID != "" {
		sets = append(sets, c.byPatient[filter.PatientID])
	}
	if filter.ArtifactID != "" {
		sets = append(sets, c.byArtifact[filter.ArtifactID])
	}
	if filter.ArtifactType != "" {
		sets = append(sets, c.byType[filter.ArtifactType])
	}
	if filter.Day != "" {
		sets = append(sets, c.byDay[filter.Day])
	}

	if len(sets) == 0 {
		// No criteria: every cached id matches.
		ids := make([]string, 0, len(c.records))
		for id := range c.records {
			ids = append(ids, id)
		}
		return ids
	}

	for _, s := range sets {
		if len(s) == 0 {
			return []string{}
		}
	}

	// Intersect starting from the smallest set.
	smallest := sets[0]
	for _, s := range sets[1:] {
		if len(s) < len(smallest) {
			smallest = s
		}
	}

	ids := make([]string, 0, len(smallest))
outer:
	for id := range smallest {
		for _, s := range sets {
			if _, ok := s[id]; !ok {
				continue outer
			}
		}
		ids = append(ids, id)
	}
	return ids
}

// ChunksByArtifact returns the cached ids for one artifact.
func (c *Cache) ChunksByArtifact(artifactID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set := c.byArtifact[artifactID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// HasArtifact reports whether the artifact index knows the artifact.
func (c *Cache) HasArtifact(artifactID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byArtifact[artifactID]
	return ok
}

// Stats summarises the cache contents.
func (c *Cache) Stats() domain.IndexStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return domain.IndexStats{
		TotalChunks:   len(c.records),
		Patients:      len(c.byPatient),
		Artifacts:     len(c.byArtifact),
		ArtifactTypes: len(c.byType),
		Days:          len(c.byDay),
	}
}

// Clear drops all cached entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byPatient = make(map[string]idSet)
	c.byArtifact = make(map[string]idSet)
	c.byType = make(map[string]idSet)
	c.byDay = make(map[string]idSet)
	c.records = make(map[string]domain.Chunk)
}

// Rebuild reconstructs the cache by replaying the metadata store's
// contents. Used when no snapshot is available or the snapshot is
// stale.
func (c *Cache) Rebuild(ctx context.Context, store driven.MetadataStore) error {
	ids, err := store.Filter(ctx, domain.ChunkFilter{})
	if err != nil {
		return fmt.Errorf("list chunk ids: %w", err)
	}

	chunks, err := store.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetch chunk records: %w", err)
	}

	c.Clear()
	for _, chunk := range chunks {
		c.Put(chunk)
	}
	return nil
}

func addTo(index map[string]idSet, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(idSet)
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFrom(index map[string]idSet, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}
