package net

import (
	"testing"

	"github.com/satcat5-go/satcat5/pkg/packetbuf"
	"github.com/satcat5-go/satcat5/pkg/sched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoopbackEthernet builds an EthernetDispatch whose egress lands in a
// packet-mode PacketBuffer the test can inspect directly.
func newLoopbackEthernet(selfMAC MAC) (*EthernetDispatch, *packetbuf.PacketBuffer) {
	txBuf := packetbuf.NewPacketMode(make([]byte, 2048), make([]uint32, 8))
	rxBuf := packetbuf.NewPacketMode(make([]byte, 2048), make([]uint32, 8))
	return NewEthernetDispatch(rxBuf, txBuf, selfMAC, false), txBuf
}

func TestAddressNotReadyUntilARPResolves(t *testing.T) {
	s := sched.New(false)
	eth, _ := newLoopbackEthernet(MAC{0, 0, 0, 0, 0, 1})
	routes := NewRouteTable(4, Route{})
	require.NoError(t, routes.AddStatic(Route{
		Subnet: ip(192, 0, 2, 0), Mask: ip(255, 255, 255, 0), Gateway: ADDRBroadcast, Port: 1,
	}))
	ipv4 := NewIPv4Dispatch(eth, ip(192, 0, 2, 1))
	resolver := NewResolver(s, eth, routes, MAC{0, 0, 0, 0, 0, 1}, ip(192, 0, 2, 1))

	addr := NewAddress(ipv4, routes, resolver, IPProtoUDP)
	addr.Connect(ip(192, 0, 2, 5))

	assert.False(t, addr.Ready(), "no ARP reply yet: connect() should leave the address unresolved")
	assert.Nil(t, addr.OpenWrite(64), "open_write must return nil while unresolved")

	// Simulate the ARP reply the spec's concrete scenario describes:
	// 192.0.2.5 -> 02:00:00:00:00:05.
	peerMAC := MAC{0x02, 0, 0, 0, 0, 0x05}
	resolver.Simulate(ip(192, 0, 2, 5), peerMAC)

	assert.True(t, addr.Ready())
	assert.Equal(t, peerMAC, addr.DstMAC())
}

func TestAddressOpenWriteFramesToResolvedMAC(t *testing.T) {
	s := sched.New(false)
	selfMAC := MAC{0, 0, 0, 0, 0, 1}
	eth, tx := newLoopbackEthernet(selfMAC)
	routes := NewRouteTable(4, Route{})
	require.NoError(t, routes.AddStatic(Route{
		Subnet: ip(192, 0, 2, 0), Mask: ip(255, 255, 255, 0), Gateway: ADDRBroadcast, Port: 1,
	}))
	ipv4 := NewIPv4Dispatch(eth, ip(192, 0, 2, 1))
	resolver := NewResolver(s, eth, routes, selfMAC, ip(192, 0, 2, 1))

	addr := NewAddress(ipv4, routes, resolver, IPProtoUDP)
	addr.Connect(ip(192, 0, 2, 5))

	peerMAC := MAC{0x02, 0, 0, 0, 0, 0x05}
	resolver.Simulate(ip(192, 0, 2, 5), peerMAC)
	require.True(t, addr.Ready())

	w := addr.OpenWrite(4)
	require.NotNil(t, w)
	w.WriteBytes([]byte{1, 2, 3, 4})
	require.True(t, w.WriteFinalize())

	// Connect broadcast an ARP request before the reply was simulated;
	// skip that record to reach the data frame.
	tx.ReadFinalize()

	frame := make([]byte, tx.BytesReady())
	tx.ReadBytes(frame)
	tx.ReadFinalize()

	// dst MAC occupies the first 6 bytes of the frame.
	assert.Equal(t, peerMAC[:], frame[0:6])
	assert.Equal(t, selfMAC[:], frame[6:12])
}
