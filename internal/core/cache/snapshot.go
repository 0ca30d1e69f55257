package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/custodia-labs/chartdex/internal/core/domain"
)

// snapshotVersion is the on-disk schema version. Loads of any other
// version are rejected so format changes cannot silently corrupt a
// warm start.
const snapshotVersion = 1

// indexEntry is one key of a secondary index in the on-disk schema.
// Maps are persisted as arrays of key/ids pairs.
type indexEntry struct {
	Key string   `json:"key"`
	IDs []string `json:"ids"`
}

// chunkRecord is the persisted form of a cached chunk.
type chunkRecord struct {
	ID              string                `json:"id"`
	ArtifactID      string                `json:"artifact_id"`
	PatientID       string                `json:"patient_id"`
	ArtifactType    string                `json:"artifact_type"`
	OccurredAt      time.Time             `json:"occurred_at"`
	Author          string                `json:"author,omitempty"`
	Text            string                `json:"text"`
	CharStart       int                   `json:"char_start"`
	CharEnd         int                   `json:"char_end"`
	SourceURL       string                `json:"source_url,omitempty"`
	Relationships   []domain.Relationship `json:"relationships,omitempty"`
	EnrichmentScore float64               `json:"enrichment_score,omitempty"`
}

// snapshot is the on-disk cache layout.
type snapshot struct {
	Version    int           `json:"version"`
	ByPatient  []indexEntry  `json:"by_patient"`
	ByArtifact []indexEntry  `json:"by_artifact"`
	ByType     []indexEntry  `json:"by_type"`
	ByDay      []indexEntry  `json:"by_day"`
	Chunks     []chunkRecord `json:"chunks"`
}

// Save writes the cache snapshot to path. The write goes through a
// temp file and rename so a crash cannot leave a torn snapshot.
func (c *Cache) Save(path string) error {
	c.mu.RLock()
	snap := snapshot{
		Version:    snapshotVersion,
		ByPatient:  indexToEntries(c.byPatient),
		ByArtifact: indexToEntries(c.byArtifact),
		ByType:     indexToEntries(c.byType),
		ByDay:      indexToEntries(c.byDay),
		Chunks:     make([]chunkRecord, 0, len(c.records)),
	}
	for _, chunk := range c.records {
		snap.Chunks = append(snap.Chunks, toRecord(chunk))
	}
	c.mu.RUnlock()

	sort.Slice(snap.Chunks, func(i, j int) bool { return snap.Chunks[i].ID < snap.Chunks[j].ID })

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadFrom replaces the cache contents with the snapshot at path.
// Returns domain.ErrSnapshotVersion for snapshots written by an
// incompatible schema version; the caller should fall back to
// rebuilding from the metadata store.
func (c *Cache) LoadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrSnapshotVersion, snap.Version, snapshotVersion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byPatient = entriesToIndex(snap.ByPatient)
	c.byArtifact = entriesToIndex(snap.ByArtifact)
	c.byType = entriesToIndex(snap.ByType)
	c.byDay = entriesToIndex(snap.ByDay)
	c.records = make(map[string]domain.Chunk, len(snap.Chunks))
	for _, rec := range snap.Chunks {
		c.records[rec.ID] = fromRecord(rec)
	}
	return nil
}

func indexToEntries(index map[string]idSet) []indexEntry {
	entries := make([]indexEntry, 0, len(index))
	for key, set := range index {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		entries = append(entries, indexEntry{Key: key, IDs: ids})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func entriesToIndex(entries []indexEntry) map[string]idSet {
	index := make(map[string]idSet, len(entries))
	for _, entry := range entries {
		set := make(idSet, len(entry.IDs))
		for _, id := range entry.IDs {
			set[id] = struct{}{}
		}
		index[entry.Key] = set
	}
	return index
}

func toRecord(chunk domain.Chunk) chunkRecord {
	return chunkRecord{
		ID:              chunk.ID,
		ArtifactID:      chunk.ArtifactID,
		PatientID:       chunk.PatientID,
		ArtifactType:    chunk.ArtifactType,
		OccurredAt:      chunk.OccurredAt,
		Author:          chunk.Author,
		Text:            chunk.Text,
		CharStart:       chunk.CharStart,
		CharEnd:         chunk.CharEnd,
		SourceURL:       chunk.SourceURL,
		Relationships:   chunk.Relationships,
		EnrichmentScore: chunk.EnrichmentScore,
	}
}

func fromRecord(rec chunkRecord) domain.Chunk {
	return domain.Chunk{
		ID:              rec.ID,
		ArtifactID:      rec.ArtifactID,
		PatientID:       rec.PatientID,
		ArtifactType:    rec.ArtifactType,
		OccurredAt:      rec.OccurredAt,
		Author:          rec.Author,
		Text:            rec.Text,
		CharStart:       rec.CharStart,
		CharEnd:         rec.CharEnd,
		SourceURL:       rec.SourceURL,
		Relationships:   rec.Relationships,
		EnrichmentScore: rec.EnrichmentScore,
	}
}
