// Package voyage implements the ai.Embedder interface against the
// Voyage AI embeddings API.
package voyage
