// Package aiagents ingests documents into per-area vector collections
// for retrieval-augmented agents.
//
// The Service façade discovers files from configured locations,
// extracts text through a prioritized backend chain, chunks and
// validates it, embeds the chunks through a configurable provider and
// upserts the vectors into Qdrant, while a SQLite ledger records job,
// artifact and chunk state for auditability and content-hash
// deduplication.
package aiagents
