package aiagents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoLocations means an ingest request carried no locations.
var ErrNoLocations = errors.New("ingest request has no locations")

func parseJobId(id string) (uuid.UUID, error) {
	jobId, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job id %q: %w", id, err)
	}
	return jobId, nil
}
