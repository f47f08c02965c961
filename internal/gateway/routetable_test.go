package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteTableLongestPrefixWins(t *testing.T) {
	table := NewRouteTable([]RouteDefinition{
		{Name: "orders", Prefix: "/api/orders"},
		{Name: "order-items", Prefix: "/api/orders/items"},
		{Name: "products", Prefix: "/api/products"},
	})

	r, ok := table.Match("/api/orders/items/42")
	require.True(t, ok)
	assert.Equal(t, "order-items", r.Def.Name)

	r, ok = table.Match("/api/orders/42")
	require.True(t, ok)
	assert.Equal(t, "orders", r.Def.Name)

	r, ok = table.Match("/api/products")
	require.True(t, ok)
	assert.Equal(t, "products", r.Def.Name)
}

func TestRouteTableMatchesOnSegmentBoundary(t *testing.T) {
	table := NewRouteTable([]RouteDefinition{
		{Name: "orders", Prefix: "/api/orders"},
	})

	_, ok := table.Match("/api/ordersearch")
	assert.False(t, ok, "prefix must not match inside a path segment")

	_, ok = table.Match("/api/orders")
	assert.True(t, ok)
}

func TestRouteTableNoRoute(t *testing.T) {
	table := NewRouteTable([]RouteDefinition{
		{Name: "orders", Prefix: "/api/orders"},
	})

	_, ok := table.Match("/api/users/7")
	assert.False(t, ok)
}

func TestRouteTableSharedBreakerPerRoute(t *testing.T) {
	table := NewRouteTable([]RouteDefinition{
		{Name: "orders", Prefix: "/api/orders"},
	})

	a, _ := table.Match("/api/orders/1")
	b, _ := table.Match("/api/orders/2")
	assert.Same(t, a.Breaker, b.Breaker, "all requests on a route share its breaker")
}
