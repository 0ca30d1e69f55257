package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/chartdex/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// Ensure Store implements the interface.
var _ driven.MetadataStore = (*Store)(nil)

// Store is the SQLite-backed metadata store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.chartdex/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".chartdex", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// InsertBatch stores chunk records in one transaction. Duplicate ids
// are silently ignored so re-indexing the same chunk id is idempotent.
func (s *Store) InsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO chunks (
			id, artifact_id, patient_id, artifact_type, occurred_at, day,
			author, text, char_start, char_end, source_url,
			relationships, enrichment_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		relJSON, err := json.Marshal(chunk.Relationships)
		if err != nil {
			return fmt.Errorf("marshalling relationships for %s: %w", chunk.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.ArtifactID, chunk.PatientID, chunk.ArtifactType,
			chunk.OccurredAt.UTC().Format(time.RFC3339Nano), chunk.Day(),
			chunk.Author, chunk.Text, chunk.CharStart, chunk.CharEnd, chunk.SourceURL,
			string(relJSON), chunk.EnrichmentScore,
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	return nil
}

// Filter returns ids of chunks matching all set criteria, ordered by
// clinical timestamp descending (id descending as tiebreak) for
// deterministic pagination.
func (s *Store) Filter(ctx context.Context, filter domain.ChunkFilter) ([]string, error) {
	query := "SELECT id FROM chunks"
	var clauses []string
	var args []any

	if filter.PatientID != "" {
		clauses = append(clauses, "patient_id = ?")
		args = append(args, filter.PatientID)
	}
	if filter.ArtifactID != "" {
		clauses = append(clauses, "artifact_id = ?")
		args = append(args, filter.ArtifactID)
	}
	if filter.ArtifactType != "" {
		clauses = append(clauses, "artifact_type = ?")
		args = append(args, filter.ArtifactType)
	}
	if filter.Day != "" {
		clauses = append(clauses, "day = ?")
		args = append(args, filter.Day)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk ids: %w", err)
	}
	return ids, nil
}

// GetByIDs retrieves full records for the given ids. Unknown ids are
// omitted from the result.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artifact_id, patient_id, artifact_type, occurred_at,
		       author, text, char_start, char_end, source_url,
		       relationships, enrichment_score
		FROM chunks WHERE id IN (`+placeholders+`)
		ORDER BY occurred_at DESC, id DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// DeleteByIDs removes records and reports how many were deleted.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}
	return int(affected), nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var occurredAt, relJSON string

	if err := rows.Scan(&chunk.ID, &chunk.ArtifactID, &chunk.PatientID, &chunk.ArtifactType,
		&occurredAt, &chunk.Author, &chunk.Text, &chunk.CharStart, &chunk.CharEnd,
		&chunk.SourceURL, &relJSON, &chunk.EnrichmentScore); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing chunk timestamp: %w", err)
	}
	chunk.OccurredAt = ts

	if relJSON != "" && relJSON != jsonNull {
		if err := json.Unmarshal([]byte(relJSON), &chunk.Relationships); err != nil {
			return nil, fmt.Errorf("unmarshaling relationships: %w", err)
		}
	}

	return &chunk, nil
}
