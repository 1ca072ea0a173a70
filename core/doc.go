// Package core defines the domain model for the document ingestion
// pipeline: locations, ingestion jobs, artifacts, chunks and token
// summaries, together with the pipeline error taxonomy used to
// distinguish artifact-scoped failures from job-fatal ones.
package core
