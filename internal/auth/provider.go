// Package auth provides GitHub OAuth authentication and session management.
package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

var ErrNotAuthenticated = errors.New("not authenticated")

// Provider authenticates requests and yields the GitHub access token the
// content repository is accessed with.
type Provider interface {
	// Routes registers the provider's own endpoints (login, callback, logout).
	Routes(mux *http.ServeMux)

	// SessionToken extracts the access token for the request's session.
	SessionToken(r *http.Request) (string, error)

	// EnforceToken is SessionToken plus a 401 response on failure.
	EnforceToken(w http.ResponseWriter, r *http.Request) (string, error)
}
