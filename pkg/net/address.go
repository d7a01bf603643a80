package net

import "github.com/satcat5-go/satcat5/pkg/stream"

// Address is per-destination IPv4 resolution state: the route's gateway
// and egress port, the currently-resolved destination MAC, a VLAN tag,
// and a readiness flag (spec §3, §4.6). OpenWrite turns this state into
// a concrete egress Writeable once ARP has resolved the next hop.
type Address struct {
	ipv4   *IPv4Dispatch
	routes *RouteTable
	arp    *Resolver
	proto  IPProtocol

	ready   bool
	dstMAC  MAC
	dstIP   IPv4
	gateway IPv4
	vtag    VID
	port    uint8
}

// NewAddress creates an Address bound to proto (the fixed IP protocol
// number every datagram through this Address carries, e.g. IPProtoUDP).
// arp may be nil for a destination that will only ever be reached via
// ConnectFixed.
func NewAddress(ipv4 *IPv4Dispatch, routes *RouteTable, arp *Resolver, proto IPProtocol) *Address {
	a := &Address{ipv4: ipv4, routes: routes, arp: arp, proto: proto}
	if arp != nil {
		arp.AddListener(a)
	}
	if routes != nil {
		routes.AddGatewayListener(a)
	}
	return a
}

// Connect looks up ip in the route table, records its gateway and egress
// port, and either adopts an already-cached MAC (becoming ready
// immediately) or requests ARP resolution for the gateway (spec §4.6).
func (a *Address) Connect(ip IPv4) {
	route := a.routes.Lookup(ip)
	a.dstIP = ip
	a.gateway = route.Gateway
	a.port = route.Port

	if !route.MAC.IsZero() {
		a.dstMAC = route.MAC
		a.ready = true
		return
	}
	a.ready = false
	if a.arp != nil {
		a.arp.Request(route.Gateway)
	}
}

// ConnectFixed sets the destination and its MAC manually, marking the
// Address ready without consulting ARP (spec §4.6: "connect(ip, mac)
// sets both manually and marks ready").
func (a *Address) ConnectFixed(ip IPv4, mac MAC) {
	a.dstIP = ip
	a.gateway = ip
	a.dstMAC = mac
	a.ready = true
}

// SetVID sets the VLAN tag egress frames through this Address carry.
func (a *Address) SetVID(v VID) { a.vtag = v }

// Ready reports whether OpenWrite would currently succeed.
func (a *Address) Ready() bool { return a.ready }

// DstIP, Gateway, and Port expose the Address's current resolution state.
func (a *Address) DstIP() IPv4    { return a.dstIP }
func (a *Address) Gateway() IPv4  { return a.gateway }
func (a *Address) Port() uint8    { return a.port }
func (a *Address) DstMAC() MAC    { return a.dstMAC }

// ARPResolved implements ARPListener: when the resolver learns the MAC
// for this Address's gateway, the Address becomes ready.
func (a *Address) ARPResolved(ip IPv4, mac MAC) {
	if ip != a.gateway {
		return
	}
	a.dstMAC = mac
	a.ready = true
}

// GatewayChange implements GatewayListener: an ICMP redirect for this
// Address's destination re-triggers resolution against the new gateway
// (spec §4.6).
func (a *Address) GatewayChange(dst, newGateway IPv4) {
	if dst != a.dstIP {
		return
	}
	a.gateway = newGateway
	a.ready = false
	if a.arp != nil {
		a.arp.Request(newGateway)
	}
}

// OpenWrite asks the IPv4 layer to emit a datagram of length payload
// bytes to this Address's destination. It returns nil if ARP has not yet
// resolved the gateway (spec §4.6, §7: "Link not ready (ARP pending):
// open_write returns null").
func (a *Address) OpenWrite(length int) stream.Writeable {
	if !a.ready {
		return nil
	}
	return a.ipv4.OpenWrite(a.dstMAC, a.vtag, a.dstIP, a.proto, length)
}

var (
	_ ARPListener     = (*Address)(nil)
	_ GatewayListener = (*Address)(nil)
)
