// Package ai defines the embedding-provider abstraction used by the
// ingestion pipeline.
//
// The Embedder interface is implemented by a closed set of backend
// variants: an OpenAI-compatible local endpoint, the hosted OpenAI API
// (ai/openai), a self-hosted Ollama model server (ai/ollamaembed) and
// the Voyage AI hosted API (ai/voyage). Which variant runs is a pure
// function of Config, resolved once per job.
//
// The mock subpackage provides a deterministic test double.
package ai
