package ingestion

import "errors"

// ErrMissingDependency means the pipeline was constructed without one
// of its required stages.
var ErrMissingDependency = errors.New("ingestion: missing pipeline dependency")
