package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/PiloTracer/aiagents/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS rag_ingestion_jobs (
	id TEXT PRIMARY KEY,
	area_slug TEXT NOT NULL,
	agent_slug TEXT NOT NULL,
	source_uri TEXT NOT NULL,
	status TEXT NOT NULL,
	total_artifacts INTEGER NOT NULL DEFAULT 0,
	processed_artifacts INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	token_summary TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rag_artifacts (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES rag_ingestion_jobs(id) ON DELETE CASCADE,
	area_slug TEXT NOT NULL,
	agent_slug TEXT NOT NULL,
	source_path TEXT NOT NULL,
	source_hash TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	extractor TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rag_artifacts_job ON rag_artifacts(job_id);
CREATE INDEX IF NOT EXISTS idx_rag_artifacts_hash ON rag_artifacts(area_slug, source_hash);

CREATE TABLE IF NOT EXISTS rag_artifact_chunks (
	id TEXT PRIMARY KEY,
	artifact_id TEXT NOT NULL REFERENCES rag_artifacts(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	text_preview TEXT NOT NULL DEFAULT '',
	token_count INTEGER NOT NULL DEFAULT 0,
	point_id TEXT NOT NULL DEFAULT '',
	payload TEXT,
	created_at DATETIME NOT NULL,
	UNIQUE(artifact_id, chunk_index)
);
`

// Store is the SQLite-backed ingestion ledger. It records jobs,
// artifacts and chunk metadata; vector payloads live in the vector
// store, never here.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore opens (or creates) the ledger database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("ledger data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledger.db")

	// WAL mode keeps readers unblocked while a job is writing.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{
		db:     db,
		path:   dbPath,
		logger: slog.Default().With("component", "ledger"),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CreateJob inserts a new pending job row.
func (s *Store) CreateJob(ctx context.Context, job *core.IngestionJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = core.JobPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rag_ingestion_jobs
			(id, area_slug, agent_slug, source_uri, status, total_artifacts,
			 processed_artifacts, error_message, token_summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`, job.Id.String(), job.AreaSlug, job.AgentSlug, job.SourceURI, string(job.Status),
		job.TotalArtifacts, job.ProcessedArtifacts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*core.IngestionJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, area_slug, agent_slug, source_uri, status, total_artifacts,
		       processed_artifacts, error_message, token_summary, created_at, updated_at
		FROM rag_ingestion_jobs WHERE id = ?
	`, id.String())

	return scanJob(row.Scan)
}

// ListJobs returns jobs ordered most recent first, optionally filtered
// by area. limit <= 0 means no limit.
func (s *Store) ListJobs(ctx context.Context, areaSlug string, limit int) ([]core.IngestionJob, error) {
	query := `
		SELECT id, area_slug, agent_slug, source_uri, status, total_artifacts,
		       processed_artifacts, error_message, token_summary, created_at, updated_at
		FROM rag_ingestion_jobs`
	args := []any{}
	if areaSlug != "" {
		query += " WHERE area_slug = ?"
		args = append(args, areaSlug)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// MarkJobStatus transitions a job, refusing to move it out of a
// terminal state.
func (s *Store) MarkJobStatus(ctx context.Context, id uuid.UUID, status core.JobStatus, errorMessage string) error {
	current, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrTerminalJob, id, current.Status)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE rag_ingestion_jobs
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, string(status), errorMessage, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	return nil
}

// SetJobTotals records the discovered artifact count for a job.
func (s *Store) SetJobTotals(ctx context.Context, id uuid.UUID, total int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rag_ingestion_jobs
		SET total_artifacts = ?, updated_at = ?
		WHERE id = ?
	`, total, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("updating job totals: %w", err)
	}
	return requireRow(result, id)
}

// IncrementJobProgress bumps the processed-artifact counter by one.
func (s *Store) IncrementJobProgress(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rag_ingestion_jobs
		SET processed_artifacts = processed_artifacts + 1, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("updating job progress: %w", err)
	}
	return requireRow(result, id)
}

// SetJobTokenSummary persists the job-level token diagnostics as JSON.
func (s *Store) SetJobTokenSummary(ctx context.Context, id uuid.UUID, summary *core.TokenSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshalling token summary: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rag_ingestion_jobs
		SET token_summary = ?, updated_at = ?
		WHERE id = ?
	`, string(payload), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("updating token summary: %w", err)
	}
	return requireRow(result, id)
}

// CreateArtifact inserts a new artifact row.
func (s *Store) CreateArtifact(ctx context.Context, artifact *core.Artifact) error {
	now := time.Now().UTC()
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now
	if artifact.Status == "" {
		artifact.Status = core.ArtifactPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rag_artifacts
			(id, job_id, area_slug, agent_slug, source_path, source_hash,
			 content_type, extractor, status, chunk_count, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, artifact.Id.String(), artifact.JobId.String(), artifact.AreaSlug, artifact.AgentSlug,
		artifact.SourcePath, artifact.SourceHash, artifact.ContentType, artifact.Extractor,
		string(artifact.Status), artifact.ChunkCount, artifact.Error,
		artifact.CreatedAt, artifact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating artifact: %w", err)
	}
	return nil
}

// ArtifactExistsByHash reports whether any artifact with the given
// content hash already exists in the area. The check runs before the
// current artifact's row is inserted, so it never matches itself.
func (s *Store) ArtifactExistsByHash(ctx context.Context, areaSlug, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rag_artifacts
		WHERE area_slug = ? AND source_hash = ?
	`, areaSlug, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking artifact hash: %w", err)
	}
	return count > 0, nil
}

// MarkArtifactStatus updates an artifact's status, extractor name,
// chunk count and error message.
func (s *Store) MarkArtifactStatus(ctx context.Context, id uuid.UUID, status core.ArtifactStatus, update ArtifactUpdate) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rag_artifacts
		SET status = ?,
		    extractor = CASE WHEN ? != '' THEN ? ELSE extractor END,
		    chunk_count = CASE WHEN ? >= 0 THEN ? ELSE chunk_count END,
		    error = ?,
		    updated_at = ?
		WHERE id = ?
	`, string(status),
		update.Extractor, update.Extractor,
		update.ChunkCount, update.ChunkCount,
		update.Error, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("updating artifact status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking artifact update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: artifact %s", ErrNotFound, id)
	}
	return nil
}

// ArtifactUpdate carries the optional fields of an artifact status
// change. ChunkCount below zero leaves the stored value untouched.
type ArtifactUpdate struct {
	Extractor  string
	ChunkCount int
	Error      string
}

// ListArtifactsForJob returns a job's artifacts in creation order.
func (s *Store) ListArtifactsForJob(ctx context.Context, jobId uuid.UUID) ([]core.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, area_slug, agent_slug, source_path, source_hash,
		       content_type, extractor, status, chunk_count, error, created_at, updated_at
		FROM rag_artifacts WHERE job_id = ?
		ORDER BY created_at, id
	`, jobId.String())
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []core.Artifact
	for rows.Next() {
		var (
			artifact      core.Artifact
			idRaw, jobRaw string
			status        string
		)
		if err := rows.Scan(&idRaw, &jobRaw, &artifact.AreaSlug, &artifact.AgentSlug,
			&artifact.SourcePath, &artifact.SourceHash, &artifact.ContentType,
			&artifact.Extractor, &status, &artifact.ChunkCount, &artifact.Error,
			&artifact.CreatedAt, &artifact.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		if artifact.Id, err = uuid.Parse(idRaw); err != nil {
			return nil, fmt.Errorf("parsing artifact id: %w", err)
		}
		if artifact.JobId, err = uuid.Parse(jobRaw); err != nil {
			return nil, fmt.Errorf("parsing artifact job id: %w", err)
		}
		artifact.Status = core.ArtifactStatus(status)
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}
	return artifacts, nil
}

// CreateChunks persists chunk metadata for one artifact in a single
// transaction.
func (s *Store) CreateChunks(ctx context.Context, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rag_artifact_chunks
			(id, artifact_id, chunk_index, text_preview, token_count, point_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		payloadJSON, err := json.Marshal(chunk.Payload)
		if err != nil {
			return fmt.Errorf("marshalling chunk payload: %w", err)
		}
		createdAt := chunk.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, chunk.Id.String(), chunk.ArtifactId.String(),
			chunk.Index, chunk.TextPreview, chunk.TokenCount, chunk.PointId,
			string(payloadJSON), createdAt); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunksForArtifact returns an artifact's chunks ordered by index.
func (s *Store) GetChunksForArtifact(ctx context.Context, artifactId uuid.UUID) ([]core.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artifact_id, chunk_index, text_preview, token_count, point_id, payload, created_at
		FROM rag_artifact_chunks WHERE artifact_id = ?
		ORDER BY chunk_index
	`, artifactId.String())
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []core.Chunk
	for rows.Next() {
		var (
			chunk         core.Chunk
			idRaw, artRaw string
			payloadJSON   sql.NullString
		)
		if err := rows.Scan(&idRaw, &artRaw, &chunk.Index, &chunk.TextPreview,
			&chunk.TokenCount, &chunk.PointId, &payloadJSON, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if chunk.Id, err = uuid.Parse(idRaw); err != nil {
			return nil, fmt.Errorf("parsing chunk id: %w", err)
		}
		if chunk.ArtifactId, err = uuid.Parse(artRaw); err != nil {
			return nil, fmt.Errorf("parsing chunk artifact id: %w", err)
		}
		if payloadJSON.Valid && payloadJSON.String != "" && payloadJSON.String != "null" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &chunk.Payload); err != nil {
				return nil, fmt.Errorf("unmarshalling chunk payload: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

func scanJob(scan func(dest ...any) error) (*core.IngestionJob, error) {
	var (
		job         core.IngestionJob
		idRaw       string
		status      string
		summaryJSON sql.NullString
	)
	if err := scan(&idRaw, &job.AreaSlug, &job.AgentSlug, &job.SourceURI, &status,
		&job.TotalArtifacts, &job.ProcessedArtifacts, &job.ErrorMessage,
		&summaryJSON, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	id, err := uuid.Parse(idRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing job id: %w", err)
	}
	job.Id = id
	job.Status = core.JobStatus(status)

	if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
		var summary core.TokenSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("unmarshalling token summary: %w", err)
		}
		job.TokenSummary = &summary
	}

	return &job, nil
}

func requireRow(result sql.Result, id uuid.UUID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return nil
}
