package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ip(a, b, c, d byte) IPv4 { return IPv4{a, b, c, d} }

func TestLongestPrefixRouteLookup(t *testing.T) {
	// Table = {10.0.0.0/8 via R1, 10.1.0.0/16 via R2, default via R3}
	// (spec §8 "Concrete scenarios: Longest-prefix route").
	def := Route{Subnet: ip(0, 0, 0, 0), Mask: ip(0, 0, 0, 0), Gateway: ip(203, 0, 113, 3), Port: 3}
	table := NewRouteTable(4, def)

	require.NoError(t, table.AddStatic(Route{Subnet: ip(10, 0, 0, 0), Mask: ip(255, 0, 0, 0), Gateway: ip(203, 0, 113, 1), Port: 1}))
	require.NoError(t, table.AddStatic(Route{Subnet: ip(10, 1, 0, 0), Mask: ip(255, 255, 0, 0), Gateway: ip(203, 0, 113, 2), Port: 2}))

	r := table.Lookup(ip(10, 1, 2, 3))
	assert.Equal(t, uint8(2), r.Port, "10.1.2.3 should match the /16 row")

	r = table.Lookup(ip(10, 2, 0, 1))
	assert.Equal(t, uint8(1), r.Port, "10.2.0.1 should fall back to the /8 row")

	r = table.Lookup(ip(8, 8, 8, 8))
	assert.Equal(t, uint8(3), r.Port, "unmatched destination falls back to default")
}

func TestLocalRouteRewritesGatewayToDestination(t *testing.T) {
	def := Route{Gateway: ADDRNone}
	table := NewRouteTable(4, def)
	require.NoError(t, table.AddStatic(Route{
		Subnet: ip(192, 168, 1, 0), Mask: ip(255, 255, 255, 0), Gateway: ADDRBroadcast, Port: 1,
	}))

	r := table.Lookup(ip(192, 168, 1, 42))
	assert.Equal(t, ip(192, 168, 1, 42), r.Gateway, "local route gateway rewrites to the destination")
}

func TestAddStaticReplacesExactSubnetMatch(t *testing.T) {
	table := NewRouteTable(2, Route{})
	require.NoError(t, table.AddStatic(Route{Subnet: ip(10, 0, 0, 0), Mask: ip(255, 0, 0, 0), Port: 1}))
	require.NoError(t, table.AddStatic(Route{Subnet: ip(10, 0, 0, 0), Mask: ip(255, 0, 0, 0), Port: 9}))
	assert.Equal(t, 1, table.StaticCount())
	r := table.Lookup(ip(10, 5, 5, 5))
	assert.Equal(t, uint8(9), r.Port)
}

func TestAddStaticFailsWhenFull(t *testing.T) {
	table := NewRouteTable(1, Route{})
	require.NoError(t, table.AddStatic(Route{Subnet: ip(10, 0, 0, 0), Mask: ip(255, 0, 0, 0)}))
	err := table.AddStatic(Route{Subnet: ip(192, 168, 0, 0), Mask: ip(255, 255, 0, 0)})
	assert.ErrorIs(t, err, ErrRouteTableFull)
}

func TestCacheAddsEphemeralHostRoute(t *testing.T) {
	def := Route{Gateway: ADDRNone}
	table := NewRouteTable(4, def)
	require.NoError(t, table.AddStatic(Route{Subnet: ip(10, 0, 0, 0), Mask: ip(255, 0, 0, 0), Gateway: ADDRBroadcast, Port: 1}))

	mac := MAC{0x02, 0, 0, 0, 0, 5}
	table.Cache(ip(10, 0, 0, 5), mac)

	assert.Equal(t, 1, table.EphemeralCount())
	r := table.Lookup(ip(10, 0, 0, 5))
	assert.Equal(t, mac, r.MAC)
}

func TestCacheDoesNotOverwriteFixedMAC(t *testing.T) {
	table := NewRouteTable(4, Route{})
	fixedMAC := MAC{1, 1, 1, 1, 1, 1}
	require.NoError(t, table.AddStatic(Route{
		Subnet: ip(10, 0, 0, 5), Mask: ip(255, 255, 255, 255),
		Gateway: ip(10, 0, 0, 5), MAC: fixedMAC, Flags: RouteFlagFixedMAC,
	}))

	table.Cache(ip(10, 0, 0, 5), MAC{0x0a, 9, 9, 9, 9, 9})
	r := table.Lookup(ip(10, 0, 0, 5))
	assert.Equal(t, fixedMAC, r.MAC)
}

func TestFlushClearsEphemeralKeepsStatic(t *testing.T) {
	table := NewRouteTable(4, Route{})
	require.NoError(t, table.AddStatic(Route{Subnet: ip(10, 0, 0, 0), Mask: ip(255, 0, 0, 0), Gateway: ADDRBroadcast}))
	table.Cache(ip(10, 0, 0, 9), MAC{0x02, 2, 3, 4, 5, 6})
	require.Equal(t, 1, table.EphemeralCount())

	table.Flush()
	assert.Equal(t, 0, table.EphemeralCount())
	assert.Equal(t, 1, table.StaticCount())
}

func TestEphemeralEvictionWhenFull(t *testing.T) {
	table := NewRouteTable(2, Route{})
	table.Cache(ip(10, 0, 0, 1), MAC{0x02, 0, 0, 0, 0, 1})
	table.Cache(ip(10, 0, 0, 2), MAC{0x02, 0, 0, 0, 0, 2})
	// Table full: adding a third host route evicts the oldest (10.0.0.1).
	table.Cache(ip(10, 0, 0, 3), MAC{0x02, 0, 0, 0, 0, 3})

	assert.Equal(t, 2, table.EphemeralCount())
	r := table.Lookup(ip(10, 0, 0, 1))
	assert.NotEqual(t, MAC{0x02, 0, 0, 0, 0, 1}, r.MAC)
}
