package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Header failures, each reported to clients with its own message.
var (
	ErrMissingHeader = errors.New("no authorization header provided")
	ErrBadScheme     = errors.New("invalid authorization format")
	ErrMissingToken  = errors.New("no token provided")
)

// BearerToken pulls the token out of "Authorization: Bearer <token>".
// The scheme match is case-insensitive.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", ErrMissingHeader
	}
	scheme, rest, _ := strings.Cut(h, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", ErrBadScheme
	}
	tok := strings.TrimSpace(rest)
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}
