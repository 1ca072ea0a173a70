// Package openai implements the ai.Embedder interface against
// OpenAI-compatible embedding APIs using the langchaingo client. It
// backs both the "openai" and "local" provider variants.
package openai
