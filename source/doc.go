// Package source resolves ingestion locations into ordered lists of
// discoverable files through scheme-specific adapters.
package source
