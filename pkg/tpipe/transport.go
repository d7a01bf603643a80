package tpipe

import (
	"sync/atomic"

	"github.com/satcat5-go/satcat5/pkg/net"
	"github.com/satcat5-go/satcat5/pkg/stream"
)

// frameHandler is what a Transport calls back into once it has decoded a
// frame header; it is the unexported hook a Tpipe binds itself to.
type frameHandler func(hdr frame, payload stream.Readable)

// Transport is the binding between a Tpipe state machine and a concrete
// net::Address/Dispatch pair (spec §4.7: "Tpipe holds a net::Address
// pointer and a net::Type filter ... the same state machine is used over
// either transport").
type Transport interface {
	// OpenWrite returns a Writeable for a frame of length bytes (header
	// included), or nil if the link isn't ready yet (ARP pending, or the hardware
	// port has no space); the caller must retry on a later poll.
	OpenWrite(length int) stream.Writeable
	// Ready reports whether OpenWrite would currently succeed.
	Ready() bool

	bind(frameHandler)
}

// EthernetTransport binds a Tpipe directly to an EthernetDispatch, filtered
// by (vid, ethertype) per spec §4.7.
type EthernetTransport struct {
	eth       *net.EthernetDispatch
	dst       net.MAC
	vid       net.VID
	etherType net.EtherType
	onFrame   frameHandler
}

// NewEthernetTransport registers an Ethernet-direct Tpipe binding on eth,
// addressed to dst under (vid, etherType).
func NewEthernetTransport(eth *net.EthernetDispatch, dst net.MAC, vid net.VID, etherType net.EtherType) *EthernetTransport {
	t := &EthernetTransport{eth: eth, dst: dst, vid: vid, etherType: etherType}
	_ = eth.RegisterProtocol(net.EthernetType{VID: vid, EtherType: etherType}, t)
	return t
}

func (t *EthernetTransport) bind(fn frameHandler) { t.onFrame = fn }

// Ready is always true for the Ethernet transport: there is no address
// resolution step, only hardware-port backpressure (handled by OpenWrite
// returning nil).
func (t *EthernetTransport) Ready() bool { return true }

func (t *EthernetTransport) OpenWrite(length int) stream.Writeable {
	return t.eth.OpenWrite(t.dst, t.vid, t.etherType, length)
}

// HandleRx implements net.EthernetProtocol.
func (t *EthernetTransport) HandleRx(payload stream.Readable, srcMAC net.MAC) {
	dispatchFrame(payload, t.onFrame)
}

// ephemeralPort hands out source ports for UDP transports that don't pin
// one explicitly (spec §4.7: "the UDP variant ... auto-allocates a source
// port from the dispatch").
var ephemeralPort uint32 = 49152

func nextEphemeralPort() uint16 {
	p := atomic.AddUint32(&ephemeralPort, 1)
	if p > 65535 {
		atomic.StoreUint32(&ephemeralPort, 49152)
		p = 49152
	}
	return uint16(p)
}

// UDPTransport binds a Tpipe to a UDPDispatch and a resolved net.Address,
// filtered by (dst_port, src_port) per spec §4.7.
type UDPTransport struct {
	udp            *net.UDPDispatch
	addr           *net.Address
	dstPort        uint16
	srcPort        uint16
	onFrame        frameHandler
}

// NewUDPTransport registers a UDP Tpipe binding. If srcPort is 0, one is
// auto-allocated from the ephemeral range.
func NewUDPTransport(udp *net.UDPDispatch, addr *net.Address, dstPort, srcPort uint16) *UDPTransport {
	if srcPort == 0 {
		srcPort = nextEphemeralPort()
	}
	t := &UDPTransport{udp: udp, addr: addr, dstPort: dstPort, srcPort: srcPort}
	_ = udp.RegisterProtocol(net.UDPType{DstPort: srcPort, SrcPort: dstPort, Connected: true}, t)
	return t
}

func (t *UDPTransport) bind(fn frameHandler) { t.onFrame = fn }

func (t *UDPTransport) Ready() bool { return t.addr.Ready() }

func (t *UDPTransport) OpenWrite(length int) stream.Writeable {
	if !t.addr.Ready() {
		return nil
	}
	return t.udp.OpenWrite(t.addr.DstMAC(), 0, t.addr.DstIP(), t.dstPort, t.srcPort, length)
}

// HandleRx implements net.UDPProtocol.
func (t *UDPTransport) HandleRx(payload stream.Readable, srcIP net.IPv4, srcPort uint16) {
	dispatchFrame(payload, t.onFrame)
}

// dispatchFrame decodes a Tpipe header from payload and, if onFrame is
// bound, hands it the header plus a reader limited to exactly the
// declared payload length.
func dispatchFrame(payload stream.Readable, onFrame frameHandler) {
	if onFrame == nil {
		payload.ReadFinalize()
		return
	}
	hdr, ok := readFrame(payload)
	if !ok {
		payload.ReadFinalize()
		return
	}
	limited := stream.NewLimitedRead(payload, uint32(hdr.length))
	onFrame(hdr, limited)
	limited.ReadFinalize()
}

var (
	_ net.EthernetProtocol = (*EthernetTransport)(nil)
	_ net.UDPProtocol      = (*UDPTransport)(nil)
)
