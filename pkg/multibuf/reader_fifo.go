package multibuf

import "github.com/satcat5-go/satcat5/pkg/stream"

// FIFOReader delivers finalized packets in arrival order, rejecting new
// arrivals once its queue is at capacity (spec §4.3's "FIFO" reader
// variant).
type FIFOReader struct {
	readerBase
	queue []int32
	head  int
	n     int
}

// NewFIFOReader creates a FIFOReader with room for capacity queued packets
// beyond the one currently being read, and registers it with mb. A
// capacity <= 0 uses DefaultRXPKT.
func NewFIFOReader(mb *MultiBuffer, capacity int) *FIFOReader {
	if capacity <= 0 {
		capacity = DefaultRXPKT
	}
	r := &FIFOReader{queue: make([]int32, capacity)}
	r.mb = mb
	r.cur = -1
	mb.RegisterReader(r)
	return r
}

func (r *FIFOReader) accept(mb *MultiBuffer, idx int32) bool {
	mb.lock.Lock()
	defer mb.lock.Unlock()
	if r.cur < 0 && r.n == 0 {
		return true
	}
	return r.n < len(r.queue)
}

func (r *FIFOReader) push(idx int32) {
	r.mb.lock.Lock()
	if r.cur < 0 {
		r.mb.lock.Unlock()
		r.installLocked(idx)
		r.notify()
		return
	}
	r.queue[(r.head+r.n)%len(r.queue)] = idx
	r.n++
	r.mb.lock.Unlock()
}

func (r *FIFOReader) popLocked() int32 {
	r.mb.lock.Lock()
	defer r.mb.lock.Unlock()
	if r.n == 0 {
		return -1
	}
	idx := r.queue[r.head]
	r.head = (r.head + 1) % len(r.queue)
	r.n--
	return idx
}

// ReadFinalize releases the packet currently being read and advances to the
// next queued packet, notifying the listener if one is ready.
func (r *FIFOReader) ReadFinalize() {
	next := r.popLocked()
	r.finalize(next)
	if next >= 0 {
		r.notify()
	}
}

var (
	_ stream.Readable = (*FIFOReader)(nil)
	_ Reader          = (*FIFOReader)(nil)
)
