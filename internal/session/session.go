// Package session resolves cookie-presented passkeys against the Redis
// session cache and provides the access-control middleware chain built
// on top of that resolution.
package session

import (
	"context"
	"net/http"
	"time"

	"audiobookd/pkg/domain"
)

// CookieName is the fixed name of the session cookie.
const CookieName = "passkey"

// DefaultTTL is the sliding session lifetime: 7 days, refreshed on each
// authenticated request.
const DefaultTTL = 7 * 24 * time.Hour

// Identity is the login record stored in the cache under a passkey.
type Identity struct {
	UserID   int64       `json:"user_id"`
	Role     domain.Role `json:"role_level"`
	Username string      `json:"username"`
}

// State is the three-way resolution outcome of a passkey check.
type State int

const (
	// StateNoToken: the request carried no session cookie.
	StateNoToken State = iota
	// StateCacheMiss: a token was presented but the cache had no usable
	// entry for it (absent, expired, corrupt, or unreachable cache).
	StateCacheMiss
	// StateResolved: the token mapped to a well-formed identity.
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateCacheMiss:
		return "cache_miss"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Outcome pairs the resolution state with the identity, which is only
// meaningful when State is StateResolved.
type Outcome struct {
	State    State
	Identity Identity
}

// Store persists session tokens.
type Store interface {
	Create(ctx context.Context, id Identity) (string, error)
	Get(ctx context.Context, token string) (Identity, bool, error)
	Refresh(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
}

// TokenFromRequest extracts the passkey cookie value.
func TokenFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Resolve maps a client-presented token to its three-way outcome with
// exactly one cache read. It never mutates the store: cache errors and
// undecodable entries both collapse to StateCacheMiss.
func Resolve(ctx context.Context, s Store, token string, present bool) Outcome {
	if !present {
		return Outcome{State: StateNoToken}
	}
	id, ok, err := s.Get(ctx, token)
	if err != nil || !ok {
		return Outcome{State: StateCacheMiss}
	}
	return Outcome{State: StateResolved, Identity: id}
}

// NewCookie builds the login cookie carrying the passkey. Its Max-Age
// matches the cache entry's TTL so the browser forgets the token at the
// same moment the cache does; non-positive ttl means DefaultTTL.
func NewCookie(token string, ttl time.Duration) *http.Cookie {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds the logout cookie that removes the passkey.
// MaxAge -1 serializes as Max-Age=0.
func ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
