package source

import (
	"context"
	"fmt"

	"github.com/PiloTracer/aiagents/core"
)

// File is one discoverable document reference produced by an adapter.
type File struct {
	// URI of the file in the adapter's scheme.
	URI string
	// Path is the absolute local path the extraction chain reads.
	Path string
	// ContentType is the MIME type guessed from the file name, if any.
	ContentType string
}

// Adapter resolves location URIs of one scheme into files. Only a
// local-filesystem adapter ships; the contract permits remote adapters
// (object storage, network shares) without changing downstream stages.
type Adapter interface {
	// Supports reports whether the adapter handles the URI's scheme.
	Supports(uri string) bool

	// Discover lists the files under uri. When recursive is false only
	// direct children are returned. The result order is deterministic.
	Discover(ctx context.Context, uri string, recursive bool) ([]File, error)
}

// Registry selects an adapter based on a URI.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry over the given adapters, consulted in
// order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Discover resolves the location into an ordered list of files using
// the first adapter that supports its scheme. An unsupported scheme is
// a source error that aborts the location.
func (r *Registry) Discover(ctx context.Context, loc core.Location) ([]File, error) {
	for _, adapter := range r.adapters {
		if adapter.Supports(loc.URI) {
			return adapter.Discover(ctx, loc.URI, loc.Recursive)
		}
	}
	return nil, core.NewSourceError(core.KindUnsupportedScheme,
		fmt.Errorf("no source adapter configured for URI: %s", loc.URI))
}
