package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"audiobookd/pkg/domain"
)

type contextKey int

const (
	outcomeCtxKey contextKey = iota
	identityCtxKey
	observedCtxKey
)

// Observed is a per-request holder the access-log wrapper installs
// before routing. The interceptors fill it in as they resolve, so the
// log line can report the login state even though the wrapper sits
// outside the router.
type Observed struct {
	Outcome Outcome
	Set     bool
}

// ContextWithObserved installs a fresh Observed holder.
func ContextWithObserved(ctx context.Context) (context.Context, *Observed) {
	obs := &Observed{}
	return context.WithValue(ctx, observedCtxKey, obs), obs
}

func recordObserved(ctx context.Context, outcome Outcome) {
	if obs, ok := ctx.Value(observedCtxKey).(*Observed); ok {
		obs.Outcome = outcome
		obs.Set = true
	}
}

// Chain builds the access-control interceptors over one session store.
type Chain struct {
	sessions Store
}

// NewChain wires the middleware chain to a session store.
func NewChain(sessions Store) *Chain {
	return &Chain{sessions: sessions}
}

// WithSession is the passive interceptor: it resolves the passkey,
// attaches the raw outcome (and the identity, when resolved) to the
// request context, and always continues. A resolved session still gets
// its TTL refreshed so browsing rendered pages keeps a login alive.
func (c *Chain) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := c.resolveAndRefresh(r)
		ctx := context.WithValue(r.Context(), outcomeCtxKey, outcome)
		if outcome.State == StateResolved {
			ctx = context.WithValue(ctx, identityCtxKey, outcome.Identity)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser admits any resolved identity. The TTL refresh happens
// before the wrapped handler runs so long handlers cannot race an
// expiring session. Unresolved requests are rejected with 401.
func (c *Chain) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome := c.resolveAndRefresh(r)
		if outcome.State != StateResolved {
			writeAuthError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		ctx := context.WithValue(r.Context(), outcomeCtxKey, outcome)
		ctx = context.WithValue(ctx, identityCtxKey, outcome.Identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin admits only resolved identities carrying the admin role.
// Non-admin sessions get 403, distinct from the unauthorized case.
func (c *Chain) RequireAdmin(next http.Handler) http.Handler {
	return c.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || id.Role != domain.RoleAdmin {
			writeAuthError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// resolveAndRefresh performs the single cache read and, on success,
// restarts the sliding expiration. A failed refresh is logged but does
// not invalidate the resolution: the session stays valid until its
// previous expiry.
func (c *Chain) resolveAndRefresh(r *http.Request) Outcome {
	token, present := TokenFromRequest(r)
	outcome := Resolve(r.Context(), c.sessions, token, present)
	if outcome.State == StateResolved {
		if err := c.sessions.Refresh(r.Context(), token); err != nil {
			slog.Warn("session ttl refresh failed", "user", outcome.Identity.Username, "err", err)
		}
	}
	recordObserved(r.Context(), outcome)
	return outcome
}

// OutcomeFromContext returns the outcome attached by the passive or
// strict interceptors, reporting false when no interceptor ran.
func OutcomeFromContext(ctx context.Context) (Outcome, bool) {
	o, ok := ctx.Value(outcomeCtxKey).(Outcome)
	return o, ok
}

// IdentityFromContext returns the resolved identity, reporting false
// for anonymous requests or when no interceptor ran.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(Identity)
	return id, ok
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
