// Package server exposes ingestion over HTTP: POST /rag/ingest starts
// synchronous per-location jobs and GET /rag/jobs reports their state,
// including token summaries. Authorization is delegated to an injected
// Authorizer checked by middleware.
package server
