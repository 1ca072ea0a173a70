package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized means the request carried no acceptable credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Authorizer decides whether a request may trigger ingestion. The
// concrete policy lives with the caller; the server only enforces the
// verdict.
type Authorizer interface {
	Authorize(r *http.Request) error
}

// StaticTokenAuthorizer accepts requests carrying a fixed bearer token.
type StaticTokenAuthorizer struct {
	Token string
}

func (a StaticTokenAuthorizer) Authorize(r *http.Request) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// AllowAll authorizes every request. Used when no token is configured.
type AllowAll struct{}

func (AllowAll) Authorize(*http.Request) error { return nil }
