// Package memory provides in-memory implementations of the storage
// ports, used in tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		chunks: make(map[string]domain.Chunk),
	}
}

// InsertBatch stores chunk records. Duplicate ids are silently ignored.
func (s *MetadataStore) InsertBatch(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		if _, exists := s.chunks[chunk.ID]; exists {
			continue
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Filter returns matching ids ordered by OccurredAt descending,
// id descending as tiebreak.
func (s *MetadataStore) Filter(_ context.Context, filter domain.ChunkFilter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Chunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if filter.PatientID != "" && chunk.PatientID != filter.PatientID {
			continue
		}
		if filter.ArtifactID != "" && chunk.ArtifactID != filter.ArtifactID {
			continue
		}
		if filter.ArtifactType != "" && chunk.ArtifactType != filter.ArtifactType {
			continue
		}
		if filter.Day != "" && chunk.Day() != filter.Day {
			continue
		}
		matched = append(matched, chunk)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID > matched[j].ID
	})

	ids := make([]string, len(matched))
	for i, chunk := range matched {
		ids[i] = chunk.ID
	}
	return ids, nil
}

// GetByIDs retrieves full records for the given ids, omitting unknown
// ids.
func (s *MetadataStore) GetByIDs(_ context.Context, ids []string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunks []domain.Chunk //nolint:prealloc // unknown ids are omitted
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// DeleteByIDs removes records and reports how many were deleted.
func (s *MetadataStore) DeleteByIDs(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.chunks[id]; ok {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count returns the total number of stored chunks.
func (s *MetadataStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close releases resources.
func (s *MetadataStore) Close() error {
	return nil
}
