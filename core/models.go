package core

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	// JobPending means the job is created but processing has not started.
	JobPending JobStatus = "pending"
	// JobRunning means discovery or artifact processing is in progress.
	JobRunning JobStatus = "running"
	// JobSucceeded means every artifact processed without failures.
	JobSucceeded JobStatus = "succeeded"
	// JobFailed means a fatal error aborted remaining processing.
	JobFailed JobStatus = "failed"
	// JobPartial means some artifacts succeeded while others failed or
	// were skipped, with no fatal abort.
	JobPartial JobStatus = "partial"
)

// Terminal reports whether the status is final. Terminal jobs are never
// transitioned again and their token summary is frozen.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobPartial
}

// ArtifactStatus is the processing state of a single discovered file.
type ArtifactStatus string

const (
	ArtifactPending    ArtifactStatus = "pending"
	ArtifactProcessing ArtifactStatus = "processing"
	ArtifactCompleted  ArtifactStatus = "completed"
	ArtifactFailed     ArtifactStatus = "failed"
	// ArtifactSkippedDuplicate means the content hash already existed
	// for the area and the file was not reprocessed.
	ArtifactSkippedDuplicate ArtifactStatus = "skipped-duplicate"
	// ArtifactSkippedEmpty means extraction produced no usable text.
	ArtifactSkippedEmpty ArtifactStatus = "skipped-empty"
)

// Location is a request to ingest one path or URI into one area,
// attributed to one agent. Locations are consumed once per request and
// never persisted independently.
type Location struct {
	URI       string
	AreaSlug  string
	AgentSlug string
	Recursive bool
}

// IngestionJob tracks the processing of a single Location.
type IngestionJob struct {
	Id                 uuid.UUID
	AreaSlug           string
	AgentSlug          string
	SourceURI          string
	Status             JobStatus
	TotalArtifacts     int
	ProcessedArtifacts int
	ErrorMessage       string
	TokenSummary       *TokenSummary // nil until validation has run
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Artifact is one discovered source file and its processing outcome.
type Artifact struct {
	Id          uuid.UUID
	JobId       uuid.UUID
	AreaSlug    string
	AgentSlug   string
	SourcePath  string
	SourceHash  string
	ContentType string
	// Extractor is the name of the extraction backend that produced the
	// text, recorded for observability.
	Extractor  string
	Status     ArtifactStatus
	ChunkCount int
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chunk is one overlapping text window derived from an Artifact,
// embedded and stored as one vector-store point.
type Chunk struct {
	Id         uuid.UUID
	ArtifactId uuid.UUID
	// Index is the 0-based ordinal of the chunk within its artifact.
	// Indices are contiguous and stable for a given size/overlap/source.
	Index       int
	TextPreview string
	TokenCount  int
	PointId     string
	Payload     map[string]any
	CreatedAt   time.Time
}

// TokenSummary holds aggregate and sampled token diagnostics for a job.
// ValidTokens + InvalidTokens == TotalTokens at every observation point.
type TokenSummary struct {
	TotalTokens       int           `json:"total_tokens"`
	ValidTokens       int           `json:"valid_tokens"`
	InvalidTokens     int           `json:"invalid_tokens"`
	RemovedCharacters int           `json:"removed_characters"`
	DroppedChunks     int           `json:"dropped_chunks"`
	FallbackChunks    []int         `json:"fallback_chunks"`
	Samples           []TokenSample `json:"samples"`
}

// TokenSample is the retained diagnostic detail for one chunk. Only the
// first few chunks of a job keep samples, to bound memory and payload size.
type TokenSample struct {
	ChunkIndex        int    `json:"chunk_index"`
	TokenCount        int    `json:"token_count"`
	InvalidCharacters int    `json:"invalid_characters"`
	SampleTokens      []int  `json:"sample_tokens"`
	SampleText        string `json:"sample_text"`
	ValidationNote    string `json:"validation_note"`
}

// ContentHash computes the deduplication digest of raw file bytes using
// BLAKE2b-256. Identical byte content always yields the identical digest
// regardless of path.
func ContentHash(r io.Reader) (string, error) {
	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
