package server

import (
	"context"
	"net/http"
	"strings"
)

// Principal identity arrives from the platform gateway as trusted
// headers; this service performs authorization only.
type Principal struct {
	ID       string
	RoleSlug string
}

type principalContextKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func currentPrincipal(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalContextKey{})
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func principalFromHeaders(r *http.Request) (Principal, bool) {
	role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Actor-Role")))
	if role == "" {
		return Principal{}, false
	}
	return Principal{
		ID:       strings.TrimSpace(r.Header.Get("X-Actor-ID")),
		RoleSlug: role,
	}, true
}
