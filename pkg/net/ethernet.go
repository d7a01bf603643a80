package net

import (
	"hash"
	"hash/crc32"

	"github.com/satcat5-go/satcat5/pkg/stream"
	"github.com/satcat5-go/satcat5/pkg/telemetry"
)

const (
	ethHeaderLen   = 12 // dst(6) + src(6); ethertype and optional VLAN tag follow
	vlanTagLen     = 4
	ethertypeLen   = 2
	fcsLen         = 4
)

// EthernetType is the registration key for an Ethernet Protocol handler:
// VLAN ID and EtherType (spec §4.5). A zero VID matches any VLAN tag
// (including untagged frames).
type EthernetType struct {
	VID       VID
	EtherType EtherType
}

// EthernetProtocol handles one inbound EtherType's payload.
type EthernetProtocol interface {
	// HandleRx receives a LimitedRead over the frame's payload (FCS
	// already stripped and verified) along with the frame's source MAC.
	HandleRx(payload stream.Readable, srcMAC MAC)
}

type ethHandler struct {
	key   EthernetType
	proto EthernetProtocol
}

// EthernetDispatch is the Ethernet-layer Dispatch: it owns a hardware
// port's Readable/Writeable pair, demuxes inbound frames to registered
// Protocol handlers by (VID, EtherType), and frames outbound payloads
// with destination/source MAC, optional 802.1Q tag, EtherType, and CRC-32
// FCS (spec §4.5, §6).
type EthernetDispatch struct {
	rx      stream.Readable
	tx      stream.Writeable
	selfMAC MAC

	withFCS bool // whether this port's frames carry a trailing FCS

	handlers []ethHandler

	emitter *telemetry.Emitter
	iface   string
}

// NewEthernetDispatch wires a Dispatch to a hardware port's Readable/
// Writeable pair. withFCS enables CRC-32 FCS computation on egress and
// verification on ingress (a port whose hardware already strips/appends
// FCS itself should pass false).
func NewEthernetDispatch(rx stream.Readable, tx stream.Writeable, selfMAC MAC, withFCS bool) *EthernetDispatch {
	d := &EthernetDispatch{rx: rx, tx: tx, selfMAC: selfMAC, withFCS: withFCS}
	rx.SetListener(d)
	return d
}

// SetEmitter attaches telemetry; both may be nil.
func (d *EthernetDispatch) SetEmitter(e *telemetry.Emitter, iface string) {
	d.emitter, d.iface = e, iface
}

// RegisterProtocol binds proto to key. Duplicate registration (the same
// key registered twice) is a bug per spec §3, not a supported mode, and
// returns ErrDuplicateProtocol rather than silently shadowing the first
// registration.
func (d *EthernetDispatch) RegisterProtocol(key EthernetType, proto EthernetProtocol) error {
	for _, h := range d.handlers {
		if h.key == key {
			return ErrDuplicateProtocol
		}
	}
	d.handlers = append(d.handlers, ethHandler{key: key, proto: proto})
	return nil
}

func (d *EthernetDispatch) lookup(vid VID, et EtherType) EthernetProtocol {
	for _, h := range d.handlers {
		if h.key.EtherType == et && (h.key.VID == 0 || h.key.VID == vid) {
			return h.proto
		}
	}
	return nil
}

// DataRcvd implements stream.EventListener: it drains and dispatches
// every complete frame currently buffered by the hardware port, then
// relies on the port re-arming the listener if more arrive (spec §4.1).
func (d *EthernetDispatch) DataRcvd() {
	for d.rx.BytesReady() > 0 {
		d.dispatchOne()
	}
}

// Poll is an Always-registrable fallback for hardware ports that must be
// polled rather than pushed via DataRcvd.
func (d *EthernetDispatch) Poll() {
	if d.rx.BytesReady() > 0 {
		d.dispatchOne()
	}
}

func (d *EthernetDispatch) dispatchOne() {
	var rx stream.Readable = d.rx
	var verify *checksumRx
	if d.withFCS {
		verify = newChecksumRx(d.rx)
		rx = verify
	}

	if rx.BytesReady() < ethHeaderLen+ethertypeLen {
		d.drop("ethernet", "short frame")
		d.rx.ReadFinalize()
		return
	}

	var dst, src MAC
	rx.ReadBytes(dst[:])
	rx.ReadBytes(src[:])

	et := EtherType(stream.ReadU16(rx))
	var vid VID
	if et == EtherTypeVLAN {
		tag := stream.ReadU16(rx)
		vid = VID(tag & 0x0fff)
		et = EtherType(stream.ReadU16(rx))
	}

	if !dst.IsBroadcast() && !dst.IsMulticast() && dst != d.selfMAC {
		rx.ReadFinalize()
		d.rx.ReadFinalize()
		return
	}

	proto := d.lookup(vid, et)
	if proto == nil {
		rx.ReadFinalize()
		d.rx.ReadFinalize()
		return
	}

	payload := stream.NewLimitedRead(rx, rx.BytesReady())
	proto.HandleRx(payload, src)
	payload.ReadFinalize()

	if verify != nil {
		verify.ReadFinalize()
		if !verify.Valid() {
			d.drop("ethernet", "FCS mismatch")
		}
	}
	d.rx.ReadFinalize()
}

func (d *EthernetDispatch) drop(layer, reason string) {
	if d.emitter == nil {
		return
	}
	_ = d.emitter.Emit(telemetry.EventMalformedFrame, "dropped malformed frame", d.iface, nil,
		telemetry.MalformedFrameData{Layer: layer, Reason: reason})
}

// OpenWrite returns a Writeable for an outbound Ethernet frame addressed
// to dst, tagged with vid if nonzero, carrying ethertype, with length
// bytes of payload capacity. WriteFinalize appends the CRC-32 FCS (if
// enabled) and flushes the frame through the hardware port.
func (d *EthernetDispatch) OpenWrite(dst MAC, vid VID, et EtherType, length int) stream.Writeable {
	headerLen := ethHeaderLen + ethertypeLen
	if vid != 0 {
		headerLen += vlanTagLen
	}
	if d.tx.Space() < uint32(headerLen+length) {
		return nil
	}

	e := newChecksumTx(d.tx, d.withFCS)
	e.WriteBytes(dst[:])
	e.WriteBytes(d.selfMAC[:])
	if vid != 0 {
		stream.WriteU16(e, uint16(EtherTypeVLAN))
		stream.WriteU16(e, uint16(vid)&0x0fff)
	}
	stream.WriteU16(e, uint16(et))
	return e
}

// checksumTx wraps a Writeable, tracking a running CRC-32 over every byte
// written and appending it (little-endian, per spec §6) on WriteFinalize
// when enabled (spec §4.5: "ChecksumTx ... inline stream transform").
type checksumTx struct {
	dst     stream.Writeable
	crc     hash.Hash32
	enabled bool
}

func newChecksumTx(dst stream.Writeable, enabled bool) *checksumTx {
	c := &checksumTx{dst: dst, enabled: enabled}
	if enabled {
		c.crc = crc32.NewIEEE()
	}
	return c
}

func (c *checksumTx) Space() uint32 {
	s := c.dst.Space()
	if c.enabled {
		if s < fcsLen {
			return 0
		}
		s -= fcsLen
	}
	return s
}

func (c *checksumTx) WriteU8(v uint8) {
	c.dst.WriteU8(v)
	if c.enabled {
		c.crc.Write([]byte{v})
	}
}

func (c *checksumTx) WriteBytes(src []byte) {
	c.dst.WriteBytes(src)
	if c.enabled {
		c.crc.Write(src)
	}
}

func (c *checksumTx) WriteFinalize() bool {
	if c.enabled {
		stream.WriteU32L(c.dst, c.crc.Sum32())
	}
	return c.dst.WriteFinalize()
}

func (c *checksumTx) WriteAbort() { c.dst.WriteAbort() }
func (c *checksumTx) Overflow() bool { return c.dst.Overflow() }

// checksumRx wraps a Readable, limiting visible bytes to everything
// except the trailing 4-byte FCS and tracking a running CRC-32 over every
// byte actually read so Valid can compare it once the caller has drained
// the record (spec §4.5: "ChecksumRx ... inline stream transform").
type checksumRx struct {
	src       stream.Readable
	crc       hash.Hash32
	limit     uint32
	underflow bool
	valid     bool
	checked   bool
}

func newChecksumRx(src stream.Readable) *checksumRx {
	ready := src.BytesReady()
	limit := uint32(0)
	if ready >= fcsLen {
		limit = ready - fcsLen
	}
	return &checksumRx{src: src, crc: crc32.NewIEEE(), limit: limit}
}

func (c *checksumRx) BytesReady() uint32 { return c.limit }

func (c *checksumRx) ReadU8() uint8 {
	if c.limit == 0 {
		c.underflow = true
		return 0
	}
	v := c.src.ReadU8()
	c.crc.Write([]byte{v})
	c.limit--
	return v
}

func (c *checksumRx) ReadBytes(dst []byte) bool {
	if uint32(len(dst)) > c.limit {
		for i := range dst {
			dst[i] = c.ReadU8()
		}
		return false
	}
	ok := c.src.ReadBytes(dst)
	c.crc.Write(dst)
	c.limit -= uint32(len(dst))
	return ok
}

func (c *checksumRx) ReadConsume(n uint32) {
	if n > c.limit {
		n = c.limit
	}
	for i := uint32(0); i < n; i++ {
		c.ReadU8()
	}
}

// ReadFinalize drains any unread payload (so the CRC covers the whole
// record), then reads and compares the trailing FCS.
func (c *checksumRx) ReadFinalize() {
	c.ReadConsume(c.limit)
	var fcs [fcsLen]byte
	c.src.ReadBytes(fcs[:])
	stored := uint32(fcs[0]) | uint32(fcs[1])<<8 | uint32(fcs[2])<<16 | uint32(fcs[3])<<24
	c.valid = c.crc.Sum32() == stored
	c.checked = true
}

func (c *checksumRx) Underflow() bool { return c.underflow }

func (c *checksumRx) SetListener(l stream.EventListener) { c.src.SetListener(l) }

// Valid reports whether the FCS matched. Only meaningful after
// ReadFinalize.
func (c *checksumRx) Valid() bool { return !c.checked || c.valid }

var (
	_ stream.Writeable = (*checksumTx)(nil)
	_ stream.Readable  = (*checksumRx)(nil)
)
