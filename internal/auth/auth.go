// Package auth resolves bearer tokens to user identities and gates
// tier-limited features.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("auth: missing bearer token")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Name   string
	Tier   string // "free" or "plus"
}

// UserSource resolves tokens to identities.
type UserSource interface {
	IdentityByToken(ctx context.Context, token string) (Identity, error)
}

// Authorizer authenticates an incoming request.
type Authorizer interface {
	Authenticate(r *http.Request) (Identity, error)
}

// TokenAuthorizer reads "Authorization: Bearer <token>" and looks the
// token up in a UserSource.
type TokenAuthorizer struct {
	Source UserSource
}

func (a *TokenAuthorizer) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return Identity{}, ErrMissingBearer
	}
	return a.Source.IdentityByToken(r.Context(), strings.TrimSpace(token))
}

// PagedAllowed reports whether the tier may request paginated exports.
// Free accounts get the flat text export only.
func PagedAllowed(tier string) bool {
	return tier != "" && tier != "free"
}
