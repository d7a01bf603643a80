// Package multibuf implements MultiBuffer: a shared pool of fixed-size
// chunks backing multi-producer/multi-consumer packet delivery, so an
// inbound packet can be handed to several readers by reference instead of
// by copy (spec §4.3).
package multibuf

// DefaultChunkPayload matches the ~56-byte chunks named in spec §3.
const DefaultChunkPayload = 56

// DefaultMaxPacketBytes bounds a single packet's total length (spec §5:
// "per-packet byte length (default 2048)").
const DefaultMaxPacketBytes = 2048

// DefaultRXPKT is the default number of packets a single reader queue can
// hold (spec §5).
const DefaultRXPKT = 32

// DefaultWatchdogMS is the default Writer watchdog interval (spec §4.3,
// §5: "default 1.5s"). Readers have no watchdog: a reader that stops
// draining keeps its queued packets.
const DefaultWatchdogMS = 1500

// MetaSlots is the number of opaque per-packet metadata words the buffer
// carries but never itself interprets (spec §3: "metadata slots unused by
// the buffer itself").
const MetaSlots = 4

type chunk struct {
	data [DefaultChunkPayload]byte
	used int
	next int32 // index into Pool.chunks, -1 = end of chain
}

type packetDesc struct {
	inUse      bool
	firstChunk int32
	lastChunk  int32
	length     uint32
	refCount   int32
	priority   uint8
	counter    uint64
	meta       [MetaSlots]uint32
	freeNext   int32 // free-list link when !inUse
}

// Pool is the fixed-size chunk and packet-descriptor allocator shared by
// every MultiWriter and MultiReader bound to one MultiBuffer. Modelled as
// slices with index-based free lists rather than the source's intrusive
// pointer lists (see the REDESIGN FLAGS note on cyclic structures), which
// keeps the whole thing allocation-free after construction.
type Pool struct {
	chunks    []chunk
	freeChunk int32
	freeCount int

	packets     []packetDesc
	freePacket  int32
}

// NewPool preallocates numChunks chunks and numPackets packet descriptors.
// Both are sized once at construction and never grow.
func NewPool(numChunks, numPackets int) *Pool {
	p := &Pool{
		chunks:  make([]chunk, numChunks),
		packets: make([]packetDesc, numPackets),
	}
	p.freeChunk = -1
	for i := numChunks - 1; i >= 0; i-- {
		p.chunks[i].next = p.freeChunk
		p.freeChunk = int32(i)
	}
	p.freeCount = numChunks

	p.freePacket = -1
	for i := numPackets - 1; i >= 0; i-- {
		p.packets[i].freeNext = p.freePacket
		p.freePacket = int32(i)
	}
	return p
}

// FreeChunks reports how many chunks remain unallocated; it is the
// allocator-starvation signal MultiWriter.Space reports as zero.
func (p *Pool) FreeChunks() int { return p.freeCount }

func (p *Pool) newChunk() int32 {
	if p.freeChunk < 0 {
		return -1
	}
	idx := p.freeChunk
	p.freeChunk = p.chunks[idx].next
	p.freeCount--
	p.chunks[idx].used = 0
	p.chunks[idx].next = -1
	return idx
}

func (p *Pool) newPacket() int32 {
	if p.freePacket < 0 {
		return -1
	}
	idx := p.freePacket
	p.freePacket = p.packets[idx].freeNext
	d := &p.packets[idx]
	*d = packetDesc{inUse: true, firstChunk: -1, lastChunk: -1}
	return idx
}

// freePacket releases every chunk in the packet's chain back to the free
// list, then the descriptor itself. Safe to call on an already-idle
// descriptor (no-op).
func (p *Pool) freePacketChain(idx int32) {
	if idx < 0 || !p.packets[idx].inUse {
		return
	}
	c := p.packets[idx].firstChunk
	for c >= 0 {
		next := p.chunks[c].next
		p.chunks[c].next = p.freeChunk
		p.freeChunk = c
		p.freeCount++
		c = next
	}
	p.packets[idx] = packetDesc{freeNext: p.freePacket}
	p.freePacket = idx
}

// appendByte writes b to the tail chunk of the packet's chain, allocating
// a fresh chunk first if the current tail is full or the chain is empty.
// It returns false if the allocator is starved.
func (p *Pool) appendByte(idx int32, b byte) bool {
	d := &p.packets[idx]
	if d.lastChunk < 0 {
		c := p.newChunk()
		if c < 0 {
			return false
		}
		d.firstChunk = c
		d.lastChunk = c
	}
	tail := &p.chunks[d.lastChunk]
	if tail.used >= DefaultChunkPayload {
		c := p.newChunk()
		if c < 0 {
			return false
		}
		tail.next = c
		d.lastChunk = c
		tail = &p.chunks[c]
	}
	tail.data[tail.used] = b
	tail.used++
	d.length++
	return true
}
