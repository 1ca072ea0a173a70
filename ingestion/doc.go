// Package ingestion drives documents end to end: discovery, content
// hashing and dedup, extraction, chunking, token validation, embedding
// and vector upsert, with job and artifact bookkeeping in the ledger.
//
// The Pipeline owns the job state machine. Artifact-scoped failures
// are recorded and processing continues, driving the job toward a
// partial terminal state; provider-unavailable and dimension-conflict
// failures abort the remaining artifacts and fail the job. There are
// no retries at any stage.
package ingestion
