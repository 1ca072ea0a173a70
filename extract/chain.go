package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PiloTracer/aiagents/core"
)

// Backend converts one file into plain text. A backend that cannot
// handle the file returns an error; the chain treats that as a soft
// failure and moves on.
type Backend interface {
	// Name identifies the backend; it is recorded on the artifact when
	// the backend succeeds.
	Name() string

	// Extract returns the plain text of the file at path.
	Extract(ctx context.Context, path string) (string, error)
}

// Chain tries an ordered list of extraction backends until one returns
// non-empty text. Each backend is attempted exactly once per file; there
// are no retries within the chain.
type Chain struct {
	backends []Backend
	logger   *slog.Logger
}

// NewChain creates a chain over the given backends in priority order.
func NewChain(backends ...Backend) *Chain {
	return &Chain{
		backends: backends,
		logger:   slog.Default().With("component", "extract-chain"),
	}
}

// Extract runs the chain for the file at path. It returns the extracted
// text and the name of the succeeding backend. When every backend fails
// or yields empty text, a chain-exhausted extraction error aggregating
// the attempt failures is returned.
func (c *Chain) Extract(ctx context.Context, path string) (string, string, error) {
	var attempts []error

	for _, backend := range c.backends {
		text, err := backend.Extract(ctx, path)
		if err != nil {
			c.logger.Debug("extraction backend failed",
				"backend", backend.Name(), "path", path, "err", err)
			attempts = append(attempts, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			c.logger.Debug("extraction backend returned empty text",
				"backend", backend.Name(), "path", path)
			attempts = append(attempts, fmt.Errorf("%s: empty result", backend.Name()))
			continue
		}
		c.logger.Debug("extraction succeeded",
			"backend", backend.Name(), "path", path, "chars", len(text))
		return text, backend.Name(), nil
	}

	return "", "", core.NewExtractionError(core.KindChainExhausted,
		fmt.Errorf("all backends failed for %s: %w", path, errors.Join(attempts...)))
}
