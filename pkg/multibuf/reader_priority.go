package multibuf

import "github.com/satcat5-go/satcat5/pkg/stream"

// PriorityReader delivers packets ordered by descending priority, breaking
// ties by ascending finalize order, via a binary min-heap keyed on
// (-priority, counter) (spec §4.3's "Priority" reader variant).
type PriorityReader struct {
	readerBase
	heap     []int32
	capacity int
}

// NewPriorityReader creates a PriorityReader holding up to capacity queued
// packets beyond the one currently being read, and registers it with mb. A
// capacity <= 0 uses DefaultRXPKT.
func NewPriorityReader(mb *MultiBuffer, capacity int) *PriorityReader {
	if capacity <= 0 {
		capacity = DefaultRXPKT
	}
	r := &PriorityReader{capacity: capacity}
	r.mb = mb
	r.cur = -1
	mb.RegisterReader(r)
	return r
}

// less reports whether packet a sorts before packet b: higher priority
// wins, ties broken by earlier finalize counter. Caller must hold mb.lock.
func (r *PriorityReader) less(a, b int32) bool {
	pa, pb := &r.mb.pool.packets[a], &r.mb.pool.packets[b]
	if pa.priority != pb.priority {
		return pa.priority > pb.priority
	}
	return pa.counter < pb.counter
}

func (r *PriorityReader) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !r.less(r.heap[i], r.heap[parent]) {
			break
		}
		r.heap[i], r.heap[parent] = r.heap[parent], r.heap[i]
		i = parent
	}
}

func (r *PriorityReader) siftDown(i int) {
	n := len(r.heap)
	for {
		l, rr := 2*i+1, 2*i+2
		top := i
		if l < n && r.less(r.heap[l], r.heap[top]) {
			top = l
		}
		if rr < n && r.less(r.heap[rr], r.heap[top]) {
			top = rr
		}
		if top == i {
			break
		}
		r.heap[i], r.heap[top] = r.heap[top], r.heap[i]
		i = top
	}
}

func (r *PriorityReader) accept(mb *MultiBuffer, idx int32) bool {
	mb.lock.Lock()
	defer mb.lock.Unlock()
	if r.cur < 0 && len(r.heap) == 0 {
		return true
	}
	return len(r.heap) < r.capacity
}

func (r *PriorityReader) push(idx int32) {
	r.mb.lock.Lock()
	if r.cur < 0 {
		r.mb.lock.Unlock()
		r.installLocked(idx)
		r.notify()
		return
	}
	r.heap = append(r.heap, idx)
	r.siftUp(len(r.heap) - 1)
	r.mb.lock.Unlock()
}

func (r *PriorityReader) popLocked() int32 {
	r.mb.lock.Lock()
	defer r.mb.lock.Unlock()
	if len(r.heap) == 0 {
		return -1
	}
	top := r.heap[0]
	last := len(r.heap) - 1
	r.heap[0] = r.heap[last]
	r.heap = r.heap[:last]
	if len(r.heap) > 0 {
		r.siftDown(0)
	}
	return top
}

// ReadFinalize releases the packet currently being read and advances to the
// highest-priority queued packet, notifying the listener if one is ready.
func (r *PriorityReader) ReadFinalize() {
	next := r.popLocked()
	r.finalize(next)
	if next >= 0 {
		r.notify()
	}
}

var (
	_ stream.Readable = (*PriorityReader)(nil)
	_ Reader          = (*PriorityReader)(nil)
)
