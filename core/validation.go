package core

import (
	"errors"
	"fmt"
)

// Location validation errors.
var (
	// ErrEmptyURI indicates the location URI is empty.
	ErrEmptyURI = errors.New("location uri cannot be empty")

	// ErrEmptyAreaSlug indicates the area slug is empty.
	ErrEmptyAreaSlug = errors.New("area slug cannot be empty")

	// ErrEmptyAgentSlug indicates the agent slug is empty.
	ErrEmptyAgentSlug = errors.New("agent slug cannot be empty")

	// ErrInvalidSlug indicates a slug contains characters outside
	// lowercase letters, digits, hyphen and underscore.
	ErrInvalidSlug = errors.New("slug may only contain a-z, 0-9, '-' and '_'")
)

// Validate checks that the location is well formed before a job is
// created for it. Slugs feed collection names and storage keys, so the
// accepted character set is deliberately narrow.
func (l Location) Validate() error {
	if l.URI == "" {
		return ErrEmptyURI
	}
	if l.AreaSlug == "" {
		return ErrEmptyAreaSlug
	}
	if l.AgentSlug == "" {
		return ErrEmptyAgentSlug
	}
	if !validSlug(l.AreaSlug) {
		return fmt.Errorf("area %q: %w", l.AreaSlug, ErrInvalidSlug)
	}
	if !validSlug(l.AgentSlug) {
		return fmt.Errorf("agent %q: %w", l.AgentSlug, ErrInvalidSlug)
	}
	return nil
}

func validSlug(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
