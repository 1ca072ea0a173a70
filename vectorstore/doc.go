// Package vectorstore stores embedded chunks in Qdrant.
//
// Each knowledge area maps to one collection named rag_{area_slug}
// with cosine distance. The client creates collections on demand,
// treats a vector-size mismatch on an existing collection as a fatal
// conflict and upserts points in bounded batches with wait=true so a
// successful call means the points are durable.
package vectorstore
