// Package auth resolves the caller behind a request and decides whether
// they sit on the admin allowlist.
//
// Accounts are owned by Supabase. This package never issues tokens; it
// only checks the access tokens the browser got from Supabase Auth.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aanand-mishra/students-paywall/internal/types"
)

// ErrUnauthenticated means no usable access token came with the request.
var ErrUnauthenticated = errors.New("authentication required")

// Authenticator turns an access token into a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (types.User, error)
}

// UserLookup is the remote variant: supabase.Client.User satisfies it.
type UserLookup interface {
	User(ctx context.Context, accessToken string) (types.User, error)
}

// RemoteAuthenticator asks Supabase Auth about every token.
type RemoteAuthenticator struct {
	Lookup UserLookup
}

func (a RemoteAuthenticator) Authenticate(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, ErrUnauthenticated
	}
	u, err := a.Lookup.User(ctx, token)
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return u, nil
}

// Claims is the subset of a Supabase access token this service reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates Supabase access tokens locally with the
// project's JWT secret, saving a round trip per request.
type JWTAuthenticator struct {
	Secret string
}

// NewJWTAuthenticator creates a JWTAuthenticator.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{Secret: secret}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.Secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return types.User{}, ErrUnauthenticated
	}

	// Anonymous (anon key) tokens carry no user.
	if claims.Role != "" && claims.Role != "authenticated" {
		return types.User{}, ErrUnauthenticated
	}

	return types.User{ID: claims.Subject, Email: claims.Email}, nil
}

// TokenFromRequest returns the bearer token from the Authorization header,
// or "" when there is none.
func TokenFromRequest(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// UserFromRequest authenticates the bearer token of r, falling back to
// fallbackToken (the dashboard also sends the token in JSON bodies).
// A nil Authenticator authenticates nobody.
func UserFromRequest(r *http.Request, authn Authenticator, fallbackToken string) (types.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		token = strings.TrimSpace(fallbackToken)
	}
	if authn == nil || token == "" {
		return types.User{}, ErrUnauthenticated
	}
	return authn.Authenticate(r.Context(), token)
}

// Allowlist is the set of admin emails that bypass the payment gate.
// Entries are trimmed and lower-cased; empty entries are dropped.
type Allowlist map[string]struct{}

// NewAllowlist builds an Allowlist from raw entries, e.g. the result of
// splitting "a@x.com, B@y.com,,".
func NewAllowlist(emails []string) Allowlist {
	list := make(Allowlist, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			list[e] = struct{}{}
		}
	}
	return list
}

// IsAdmin reports whether email is on the list, ignoring case.
func (l Allowlist) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	_, ok := l[email]
	return ok
}
