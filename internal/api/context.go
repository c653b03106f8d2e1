package api

import (
	"context"
	"net/http"
	"strings"
)

// ActorHeader carries the identity of the caller for audit columns.
const ActorHeader = "X-Actor"

// actorContextKey is the context key for the calling identity.
type actorContextKey struct{}

// WithActor returns a new context with the actor attached.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor attached to ctx, or "" when absent.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}

// ActorMiddleware attaches the X-Actor header value, when present, to the
// request context.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveActor prefers an identity supplied in the request body and falls
// back to the X-Actor header.
func resolveActor(r *http.Request, fromBody string) string {
	if actor := strings.TrimSpace(fromBody); actor != "" {
		return actor
	}
	return ActorFromContext(r.Context())
}
