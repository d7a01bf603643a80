package net

import (
	"github.com/satcat5-go/satcat5/pkg/stream"
	"github.com/satcat5-go/satcat5/pkg/telemetry"
)

const (
	ipv4HeaderLen = 20
	// DefaultTTL matches the UDP-echo scenario in spec §8 ("TTL=64").
	DefaultTTL = 64
)

// IPv4Protocol handles one inbound IP protocol number's payload.
type IPv4Protocol interface {
	HandleRx(payload stream.Readable, srcIP, dstIP IPv4)
}

type ipv4Handler struct {
	proto   IPProtocol
	handler IPv4Protocol
}

// IPv4Dispatch is the IPv4-layer Dispatch (spec §4.5): it registers itself
// under an EthernetDispatch for EtherTypeIPv4, demuxes inbound datagrams
// to registered IPv4Protocol handlers by protocol number, and frames
// outbound datagrams with a checksummed 20-byte header.
type IPv4Dispatch struct {
	eth     *EthernetDispatch
	selfIP  IPv4
	ttl     uint8
	handlers []ipv4Handler
	nextIdent uint16

	emitter *telemetry.Emitter
	iface   string
}

// NewIPv4Dispatch registers d with eth for EtherTypeIPv4.
func NewIPv4Dispatch(eth *EthernetDispatch, selfIP IPv4) *IPv4Dispatch {
	d := &IPv4Dispatch{eth: eth, selfIP: selfIP, ttl: DefaultTTL}
	_ = eth.RegisterProtocol(EthernetType{EtherType: EtherTypeIPv4}, d)
	return d
}

// SetEmitter attaches telemetry; both may be nil.
func (d *IPv4Dispatch) SetEmitter(e *telemetry.Emitter, iface string) {
	d.emitter, d.iface = e, iface
}

// SelfIP returns the local IPv4 address this dispatch answers to.
func (d *IPv4Dispatch) SelfIP() IPv4 { return d.selfIP }

// RegisterProtocol binds handler to proto. Duplicate registration returns
// ErrDuplicateProtocol (spec §3).
func (d *IPv4Dispatch) RegisterProtocol(proto IPProtocol, handler IPv4Protocol) error {
	for _, h := range d.handlers {
		if h.proto == proto {
			return ErrDuplicateProtocol
		}
	}
	d.handlers = append(d.handlers, ipv4Handler{proto: proto, handler: handler})
	return nil
}

func (d *IPv4Dispatch) lookup(proto IPProtocol) IPv4Protocol {
	for _, h := range d.handlers {
		if h.proto == proto {
			return h.handler
		}
	}
	return nil
}

// HandleRx implements EthernetProtocol: it is invoked by the Ethernet
// Dispatch with a LimitedRead over an inbound IPv4 datagram.
func (d *IPv4Dispatch) HandleRx(payload stream.Readable, srcMAC MAC) {
	if payload.BytesReady() < ipv4HeaderLen {
		d.drop("short header")
		return
	}

	var hdr [ipv4HeaderLen]byte
	if !payload.ReadBytes(hdr[:]) {
		d.drop("truncated header")
		return
	}

	verLen := hdr[0]
	version := verLen >> 4
	ihl := int(verLen&0x0f) * 4
	if version != 4 || ihl < ipv4HeaderLen {
		d.drop("bad version/IHL")
		return
	}
	totalLen := int(hdr[2])<<8 | int(hdr[3])
	proto := IPProtocol(hdr[9])
	var srcIP, dstIP IPv4
	copy(srcIP[:], hdr[12:16])
	copy(dstIP[:], hdr[16:20])

	storedChecksum := uint16(hdr[10])<<8 | uint16(hdr[11])
	hdr[10], hdr[11] = 0, 0
	if ihl == ipv4HeaderLen && IPv4HeaderChecksum(hdr[:]) != storedChecksum {
		d.drop("header checksum mismatch")
		return
	}

	if ihl > ipv4HeaderLen {
		payload.ReadConsume(uint32(ihl - ipv4HeaderLen))
	}

	if dstIP != d.selfIP && !dstIP.IsMulticast() && dstIP != ADDRBroadcast {
		return
	}

	payloadLen := totalLen - ihl
	if payloadLen < 0 {
		payloadLen = 0
	}
	limited := stream.NewLimitedRead(payload, uint32(payloadLen))

	handler := d.lookup(proto)
	if handler == nil {
		limited.ReadFinalize()
		return
	}
	handler.HandleRx(limited, srcIP, dstIP)
	limited.ReadFinalize()
}

func (d *IPv4Dispatch) drop(reason string) {
	if d.emitter == nil {
		return
	}
	_ = d.emitter.Emit(telemetry.EventMalformedFrame, "dropped malformed IPv4 datagram", d.iface, nil,
		telemetry.MalformedFrameData{Layer: "ipv4", Reason: reason})
}

// OpenWrite returns a Writeable for an outbound IPv4 datagram of length
// payload bytes, destined for dstIP via dstMAC (already resolved by an
// Address object), optionally VLAN-tagged. The 20-byte header (with
// checksum) is written immediately; the caller writes exactly length
// bytes of payload before calling WriteFinalize.
func (d *IPv4Dispatch) OpenWrite(dstMAC MAC, vid VID, dstIP IPv4, proto IPProtocol, length int) stream.Writeable {
	totalLen := ipv4HeaderLen + length
	ew := d.eth.OpenWrite(dstMAC, vid, EtherTypeIPv4, totalLen)
	if ew == nil {
		return nil
	}

	var hdr [ipv4HeaderLen]byte
	hdr[0] = 0x45 // version 4, IHL 5 (no options)
	hdr[1] = 0    // DSCP/ECN
	hdr[2], hdr[3] = byte(totalLen>>8), byte(totalLen)
	d.nextIdent++
	hdr[4], hdr[5] = byte(d.nextIdent>>8), byte(d.nextIdent)
	hdr[6], hdr[7] = 0x40, 0 // don't-fragment, no offset
	hdr[8] = d.ttl
	hdr[9] = byte(proto)
	hdr[10], hdr[11] = 0, 0 // checksum placeholder
	copy(hdr[12:16], d.selfIP[:])
	copy(hdr[16:20], dstIP[:])

	csum := IPv4HeaderChecksum(hdr[:])
	hdr[10], hdr[11] = byte(csum>>8), byte(csum)

	ew.WriteBytes(hdr[:])
	return ew
}

var _ EthernetProtocol = (*IPv4Dispatch)(nil)
