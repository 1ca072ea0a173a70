// Package ledger persists ingestion state in SQLite.
//
// The ledger is the system of record for jobs, artifacts and chunk
// metadata. Jobs move pending -> running -> succeeded | failed |
// partial and never leave a terminal state. Artifact content hashes
// are indexed per area to support deduplication. Vector payloads are
// not stored here; only the point ids that reference them.
package ledger
