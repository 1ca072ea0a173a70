package core

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage an error originated from.
type Stage string

const (
	StageSource  Stage = "source"
	StageExtract Stage = "extract"
	StageEmbed   Stage = "embed"
	StageStorage Stage = "storage"
)

// ErrorKind classifies a pipeline error within its stage.
type ErrorKind string

const (
	// KindUnsupportedScheme means no source adapter handles the URI scheme.
	KindUnsupportedScheme ErrorKind = "unsupported-scheme"
	// KindPathNotFound means the location path does not exist.
	KindPathNotFound ErrorKind = "path-not-found"
	// KindChainExhausted means every extraction backend failed.
	KindChainExhausted ErrorKind = "chain-exhausted"
	// KindDimensionMismatch means a provider returned vectors of the
	// wrong length. Aborts the artifact only.
	KindDimensionMismatch ErrorKind = "dimension-mismatch"
	// KindProviderUnavailable means the embedding provider could not be
	// reached or returned a malformed response. Fatal for the job:
	// remaining artifacts would fail identically.
	KindProviderUnavailable ErrorKind = "provider-unavailable"
	// KindDimensionConflict means an existing collection has a different
	// vector dimension than configured. Fatal for the location.
	KindDimensionConflict ErrorKind = "dimension-conflict"
	// KindUpsertFailed means a vector-store upsert batch failed.
	// Aborts the current artifact only.
	KindUpsertFailed ErrorKind = "upsert-failed"
)

// PipelineError is a classified pipeline failure. The job manager uses
// Stage and Kind to decide between artifact-scoped and job-fatal
// handling instead of inspecting wrapped error types at a distance.
type PipelineError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error aborts all remaining artifacts in the
// current job rather than just the current artifact.
func (e *PipelineError) Fatal() bool {
	return e.Kind == KindProviderUnavailable || e.Kind == KindDimensionConflict
}

// NewSourceError reports a discovery-time failure. Source errors abort
// the whole location.
func NewSourceError(kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Stage: StageSource, Kind: kind, Err: err}
}

// NewExtractionError reports an extraction-chain failure for one artifact.
func NewExtractionError(kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Stage: StageExtract, Kind: kind, Err: err}
}

// NewEmbeddingError reports an embedding-provider failure.
func NewEmbeddingError(kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Stage: StageEmbed, Kind: kind, Err: err}
}

// NewStorageError reports a vector-store failure.
func NewStorageError(kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Stage: StageStorage, Kind: kind, Err: err}
}

// AsPipelineError unwraps err to a *PipelineError if one is present.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsFatal reports whether err carries a job-fatal pipeline error.
func IsFatal(err error) bool {
	if pe, ok := AsPipelineError(err); ok {
		return pe.Fatal()
	}
	return false
}
