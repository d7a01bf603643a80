package net

import (
	"gvisor.dev/gvisor/pkg/tcpip/header"

	"github.com/satcat5-go/satcat5/pkg/stream"
	"github.com/satcat5-go/satcat5/pkg/telemetry"
)

// ICMP message types/codes this handler understands (spec §4.5/§9's
// "[ADDED] ICMP" feature supplement).
const (
	icmpTypeEchoReply      = 0
	icmpTypeDstUnreachable = 3
	icmpTypeEchoRequest    = 8
	icmpTypeRedirect       = 5

	icmpCodeRedirectHost = 1
)

const icmpHeaderLen = 8 // type + code + checksum + rest-of-header (4 bytes)

// ICMPHandler implements echo request/reply, logging of
// destination-unreachable messages (no Address is notified of them), and
// redirect handling that passes the redirected destination and its new
// gateway to RouteTable.GatewayChange (spec §4.6, §7).
type ICMPHandler struct {
	ipv4   *IPv4Dispatch
	routes *RouteTable

	emitter *telemetry.Emitter
	iface   string
}

// NewICMPHandler registers h with ipv4 for IPProtoICMP.
func NewICMPHandler(ipv4 *IPv4Dispatch, routes *RouteTable) *ICMPHandler {
	h := &ICMPHandler{ipv4: ipv4, routes: routes}
	_ = ipv4.RegisterProtocol(IPProtoICMP, h)
	return h
}

// SetEmitter attaches telemetry; both may be nil.
func (h *ICMPHandler) SetEmitter(e *telemetry.Emitter, iface string) {
	h.emitter, h.iface = e, iface
}

// HandleRx implements IPv4Protocol.
func (h *ICMPHandler) HandleRx(payload stream.Readable, srcIP, dstIP IPv4) {
	if payload.BytesReady() < icmpHeaderLen {
		payload.ReadFinalize()
		return
	}
	typ := payload.ReadU8()
	code := payload.ReadU8()
	stream.ReadU16(payload) // checksum, not re-verified on the minimal RX path
	restOfHeader := stream.ReadU32(payload)

	switch typ {
	case icmpTypeEchoRequest:
		h.replyEcho(srcIP, restOfHeader, payload)
	case icmpTypeDstUnreachable:
		h.logError(typ, code, srcIP)
	case icmpTypeRedirect:
		// The redirect's body starts with the IPv4 header of the datagram
		// being redirected; its destination is the one to reroute.
		gw := IPv4FromUint32(restOfHeader)
		var orig [ipv4HeaderLen]byte
		if payload.ReadBytes(orig[:]) {
			var origDst IPv4
			copy(origDst[:], orig[16:20])
			h.routes.GatewayChange(origDst, gw)
		}
		h.logError(typ, code, srcIP)
	default:
		// Unhandled ICMP types are silently dropped per spec §7.
	}
	payload.ReadFinalize()
}

func (h *ICMPHandler) logError(typ, code uint8, src IPv4) {
	if h.emitter == nil {
		return
	}
	_ = h.emitter.Emit(telemetry.EventICMPError, "ICMP error received", h.iface, nil,
		telemetry.ICMPErrorData{Type: typ, Code: code, Source: src.String()})
}

// replyEcho mirrors the echo request's identifier/sequence and data back
// to srcIP, addressed via whatever MAC the route table already has
// cached for it (no ARP round-trip is attempted from within a receive
// callback; an unresolved destination simply drops the reply).
func (h *ICMPHandler) replyEcho(srcIP IPv4, idSeq uint32, data stream.Readable) {
	mac, ok := h.routes.CachedMAC(srcIP)
	if !ok {
		return
	}
	n := int(data.BytesReady())
	ew := h.ipv4.OpenWrite(mac, 0, srcIP, IPProtoICMP, icmpHeaderLen+n)
	if ew == nil {
		return
	}

	body := make([]byte, icmpHeaderLen+n)
	body[0] = icmpTypeEchoReply
	body[1] = 0
	body[2], body[3] = 0, 0 // checksum placeholder
	body[4] = byte(idSeq >> 24)
	body[5] = byte(idSeq >> 16)
	body[6] = byte(idSeq >> 8)
	body[7] = byte(idSeq)
	buf := make([]byte, n)
	data.ReadBytes(buf)
	copy(body[icmpHeaderLen:], buf)

	csum := ^header.Checksum(body, 0)
	body[2], body[3] = byte(csum>>8), byte(csum)

	ew.WriteBytes(body)
	ew.WriteFinalize()
}

var _ IPv4Protocol = (*ICMPHandler)(nil)
