package routing

import "strings"

type RouteClass string

const (
	RouteClassPublicAPI RouteClass = "public_api"
	RouteClassAdminAPI  RouteClass = "admin_api"
	RouteClassOps       RouteClass = "ops"
)

// Classify buckets a request path. The admin surface (override mutations,
// cache control) is authz-gated; ops routes are open to the platform.
func Classify(path string) RouteClass {
	switch {
	case path == "/health" || path == "/healthz" || path == "/metrics":
		return RouteClassOps
	case hasPrefixSegment(path, "/api/v1/overrides") || hasPrefixSegment(path, "/api/v1/cache"):
		return RouteClassAdminAPI
	default:
		return RouteClassPublicAPI
	}
}

func hasPrefixSegment(path string, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
