package multibuf

import "github.com/satcat5-go/satcat5/pkg/stream"

// readerBase is the stream.Readable half shared by every MultiBuffer reader
// variant: it walks the chunk chain of whichever packet is currently
// "installed" as cur, while delivery-order policy (which packet becomes cur
// next) is left to the embedding type.
type readerBase struct {
	mb *MultiBuffer

	cur      int32 // packet index currently being read, -1 if none
	curChunk int32
	curOff   int
	curRead  uint32

	underflow bool
	listener  stream.EventListener
}

func (b *readerBase) curLength() uint32 {
	if b.cur < 0 {
		return 0
	}
	return b.mb.pool.packets[b.cur].length
}

func (b *readerBase) BytesReady() uint32 {
	b.mb.lock.Lock()
	defer b.mb.lock.Unlock()
	total := b.curLength()
	if b.cur < 0 || b.curRead >= total {
		return 0
	}
	return total - b.curRead
}

func (b *readerBase) ReadU8() uint8 {
	b.mb.lock.Lock()
	defer b.mb.lock.Unlock()
	if b.cur < 0 || b.curRead >= b.curLength() {
		b.underflow = true
		return 0
	}
	ch := &b.mb.pool.chunks[b.curChunk]
	v := ch.data[b.curOff]
	b.curOff++
	b.curRead++
	if b.curOff >= ch.used && ch.next >= 0 {
		b.curChunk = ch.next
		b.curOff = 0
	}
	return v
}

func (b *readerBase) ReadBytes(dst []byte) bool {
	ready := b.BytesReady()
	if uint32(len(dst)) > ready {
		for i := uint32(0); i < ready; i++ {
			dst[i] = b.ReadU8()
		}
		for i := ready; i < uint32(len(dst)); i++ {
			dst[i] = 0
		}
		b.underflow = true
		return false
	}
	for i := range dst {
		dst[i] = b.ReadU8()
	}
	return true
}

func (b *readerBase) ReadConsume(n uint32) {
	ready := b.BytesReady()
	if n > ready {
		n = ready
	}
	for i := uint32(0); i < n; i++ {
		b.ReadU8()
	}
}

func (b *readerBase) Underflow() bool { return b.underflow }

func (b *readerBase) SetListener(l stream.EventListener) { b.listener = l }

func (b *readerBase) notify() {
	if b.listener != nil {
		b.listener.DataRcvd()
	}
}

// finalize releases the current packet back to the shared pool (decrementing
// its ref-count) and installs next, which popLocked has already removed from
// the embedding type's queue.
func (b *readerBase) finalize(next int32) {
	b.mb.lock.Lock()
	idx := b.cur
	b.mb.lock.Unlock()
	if idx >= 0 {
		b.mb.release(idx)
	}
	b.installLocked(next)
}

func (b *readerBase) installLocked(idx int32) {
	b.mb.lock.Lock()
	defer b.mb.lock.Unlock()
	b.cur = idx
	if idx >= 0 {
		b.curChunk = b.mb.pool.packets[idx].firstChunk
	} else {
		b.curChunk = -1
	}
	b.curOff = 0
	b.curRead = 0
	b.underflow = false
}
