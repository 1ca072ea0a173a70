// Package tokens validates chunk text against the embedding tokenizer.
//
// The Analyzer encodes each chunk with the cl100k_base encoding,
// classifies tokens as valid or invalid, strips problem characters and
// decides whether a degraded chunk is kept, re-encoded through an
// ASCII fallback, or dropped. Per-chunk reports fold into a job-level
// core.TokenSummary with bounded diagnostic samples.
package tokens
