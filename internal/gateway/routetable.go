package gateway

import (
	"sort"
	"strings"
	"time"
)

// RouteDefinition describes one downstream service behind the gateway.
type RouteDefinition struct {
	Name    string
	Prefix  string
	Host    string
	Port    int
	Timeout time.Duration
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// Route pairs a definition with its live circuit breaker. Breaker state is
// per route and shared by every request matched to it.
type Route struct {
	Def     RouteDefinition
	Breaker *Breaker
}

// RouteTable matches request paths to routes by longest prefix.
type RouteTable struct {
	routes []*Route
}

func NewRouteTable(defs []RouteDefinition) *RouteTable {
	routes := make([]*Route, len(defs))
	for i, def := range defs {
		def.Prefix = strings.TrimSuffix(def.Prefix, "/")
		routes[i] = &Route{Def: def, Breaker: NewBreaker(def.Breaker)}
	}
	// Longest prefix first so the linear scan below finds the most
	// specific route.
	sort.SliceStable(routes, func(i, j int) bool {
		return len(routes[i].Def.Prefix) > len(routes[j].Def.Prefix)
	})
	return &RouteTable{routes: routes}
}

// Match returns the most specific route for path, or false when no route
// covers it. A prefix matches only on a path-segment boundary, so
// /api/orders does not capture /api/ordersearch.
func (t *RouteTable) Match(path string) (*Route, bool) {
	for _, r := range t.routes {
		p := r.Def.Prefix
		if !strings.HasPrefix(path, p) {
			continue
		}
		if len(path) == len(p) || path[len(p)] == '/' {
			return r, true
		}
	}
	return nil, false
}

// Routes returns the table's routes, most specific first.
func (t *RouteTable) Routes() []*Route {
	return t.routes
}
