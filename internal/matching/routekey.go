package matching

import (
	"strings"
)

// routeKeyDelimiter separates the two endpoints inside a route key. Location names
// are free text, so the delimiter must be something normalization can never produce.
const routeKeyDelimiter = "|"

// NormalizeLocation canonicalizes a free-text location name: lower-cased, trimmed,
// inner whitespace collapsed to single spaces.
func NormalizeLocation(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// RouteKey builds the canonical, order-sensitive key for a directed location pair.
// RouteKey(a, b) != RouteKey(b, a); callers that want undirected semantics look up
// both directions, as the matcher does.
func RouteKey(from, to string) string {
	return NormalizeLocation(from) + routeKeyDelimiter + NormalizeLocation(to)
}

// SplitRouteKey returns the normalized endpoints of a route key.
func SplitRouteKey(key string) (from, to string, ok bool) {
	from, to, ok = strings.Cut(key, routeKeyDelimiter)
	return from, to, ok
}
