package ledger

import "errors"

var (
	// ErrNotFound means the requested job or artifact does not exist.
	ErrNotFound = errors.New("ledger: record not found")

	// ErrTerminalJob means a status transition was attempted on a job
	// already in a terminal state.
	ErrTerminalJob = errors.New("ledger: job is in a terminal state")
)
