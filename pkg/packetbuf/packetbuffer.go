// Package packetbuf implements PacketBuffer, a bounded single-producer/
// single-consumer byte or packet FIFO over a caller-provided ring buffer,
// with finalize/abort semantics, peek, and an overflow-sticky Writeable
// side that behaves differently in stream mode vs. packet mode (spec
// §4.2).
package packetbuf

import "github.com/satcat5-go/satcat5/pkg/stream"

// PacketBuffer is both the Readable and the Writeable side of one FIFO:
// there is at most one writer and one reader, so the two capability
// interfaces live on the same value rather than being split across two
// objects that would need their own synchronization.
type PacketBuffer struct {
	buf []byte

	// lens is nil in stream mode. In packet mode it is a caller-sized
	// ring of committed packet lengths.
	lens  []uint32
	lHead int
	lLen  int

	start       int // ring index of the oldest unread committed byte
	committed   int // total unread committed bytes (all queued packets)
	curConsumed uint32 // bytes already read from the head packet (packet mode only)

	writeLen int // bytes written to the in-progress record so far
	overflow bool
	underflow bool

	listener stream.EventListener
}

// New creates a stream-mode PacketBuffer over buf: bytes become readable
// as a single unbroken stream as soon as they are finalized.
func New(buf []byte) *PacketBuffer {
	return &PacketBuffer{buf: buf}
}

// NewPacketMode creates a packet-mode PacketBuffer over buf, recording up
// to len(lens) outstanding packet boundaries.
func NewPacketMode(buf []byte, lens []uint32) *PacketBuffer {
	return &PacketBuffer{buf: buf, lens: lens}
}

func (p *PacketBuffer) packetMode() bool { return p.lens != nil }

func (p *PacketBuffer) capacity() int { return len(p.buf) }

// currentReady is BytesReady without the Readable interface's uint32 cast,
// used internally to detect empty->nonempty transitions for the listener.
func (p *PacketBuffer) currentReady() int {
	if !p.packetMode() {
		return p.committed
	}
	if p.lLen == 0 {
		return 0
	}
	return int(p.lens[p.lHead]) - int(p.curConsumed)
}

// --- Readable ---

func (p *PacketBuffer) BytesReady() uint32 { return uint32(p.currentReady()) }

func (p *PacketBuffer) ReadU8() uint8 {
	if p.currentReady() == 0 {
		p.underflow = true
		return 0
	}
	v := p.buf[p.start]
	p.start = (p.start + 1) % p.capacity()
	p.committed--
	if p.packetMode() {
		p.curConsumed++
	}
	return v
}

func (p *PacketBuffer) ReadBytes(dst []byte) bool {
	ready := p.currentReady()
	if ready < len(dst) {
		for i := 0; i < ready; i++ {
			dst[i] = p.ReadU8()
		}
		for i := ready; i < len(dst); i++ {
			dst[i] = 0
		}
		p.underflow = true
		return false
	}
	for i := range dst {
		dst[i] = p.ReadU8()
	}
	return true
}

func (p *PacketBuffer) ReadConsume(n uint32) {
	ready := uint32(p.currentReady())
	if n > ready {
		n = ready
	}
	for i := uint32(0); i < n; i++ {
		p.ReadU8()
	}
}

func (p *PacketBuffer) ReadFinalize() {
	p.underflow = false
	if !p.packetMode() {
		return
	}
	if p.lLen == 0 {
		return
	}
	p.ReadConsume(p.BytesReady())
	p.lHead = (p.lHead + 1) % len(p.lens)
	p.lLen--
	p.curConsumed = 0
}

func (p *PacketBuffer) Underflow() bool { return p.underflow }

func (p *PacketBuffer) SetListener(l stream.EventListener) { p.listener = l }

// --- Writeable ---

func (p *PacketBuffer) Space() uint32 {
	if p.overflow {
		return 0
	}
	free := p.capacity() - p.committed - p.writeLen
	if p.packetMode() && p.lLen >= len(p.lens) {
		return 0
	}
	if free < 0 {
		return 0
	}
	return uint32(free)
}

func (p *PacketBuffer) WriteU8(v uint8) {
	if p.overflow {
		return
	}
	if p.writeLen >= p.capacity()-p.committed {
		p.overflow = true
		return
	}
	pos := (p.start + p.committed + p.writeLen) % p.capacity()
	p.buf[pos] = v
	p.writeLen++
}

func (p *PacketBuffer) WriteBytes(src []byte) {
	for _, b := range src {
		p.WriteU8(b)
	}
}

// WriteFinalize commits the in-progress record. Packet-mode buffers
// reject the whole record on overflow (or if the packet-length ring is
// full); stream-mode buffers commit whatever fit even when overflow was
// raised, per spec §4.2.
func (p *PacketBuffer) WriteFinalize() bool {
	wasEmpty := p.currentReady() == 0

	if !p.packetMode() {
		ok := !p.overflow
		p.committed += p.writeLen
		p.writeLen = 0
		p.overflow = false
		p.notifyIfNowReadable(wasEmpty)
		return ok
	}

	if p.overflow {
		p.writeLen = 0
		p.overflow = false
		return false
	}
	if p.lLen >= len(p.lens) {
		p.writeLen = 0
		return false
	}
	p.lens[(p.lHead+p.lLen)%len(p.lens)] = uint32(p.writeLen)
	p.lLen++
	p.committed += p.writeLen
	p.writeLen = 0
	p.notifyIfNowReadable(wasEmpty)
	return true
}

func (p *PacketBuffer) notifyIfNowReadable(wasEmpty bool) {
	if p.listener != nil && wasEmpty && p.currentReady() > 0 {
		p.listener.DataRcvd()
	}
}

func (p *PacketBuffer) WriteAbort() {
	p.writeLen = 0
	p.overflow = false
}

func (p *PacketBuffer) Overflow() bool { return p.overflow }

// Clear atomically empties both the read queue and any in-progress write.
func (p *PacketBuffer) Clear() {
	p.start = 0
	p.committed = 0
	p.curConsumed = 0
	p.writeLen = 0
	p.overflow = false
	p.underflow = false
	p.lHead = 0
	p.lLen = 0
}

// Peek returns a slice view into up to n bytes starting at the current
// read position, valid only until the next Read/ReadConsume call. It may
// return fewer than n bytes if the ring wraps before n bytes or the
// record ends first; see GetPeekReady for the contiguous count.
func (p *PacketBuffer) Peek(n uint32) []byte {
	ready := uint32(p.currentReady())
	if n > ready {
		n = ready
	}
	contiguous := p.GetPeekReady()
	if n > contiguous {
		n = contiguous
	}
	return p.buf[p.start : p.start+int(n)]
}

// GetPeekReady reports the number of committed, unread bytes that are
// contiguous in memory from the current read position — i.e. bytes
// available via Peek before the ring wraps around the end of buf.
func (p *PacketBuffer) GetPeekReady() uint32 {
	ready := p.currentReady()
	tillEnd := p.capacity() - p.start
	if ready < tillEnd {
		return uint32(ready)
	}
	return uint32(tillEnd)
}
