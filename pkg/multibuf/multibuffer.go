package multibuf

import "github.com/satcat5-go/satcat5/pkg/sched"

// Reader is the subset of MultiReader's contract MultiBuffer needs to
// fan packets out: whether this reader will take a newly finalized
// packet, and the push that hands it over once accepted.
type Reader interface {
	accept(mb *MultiBuffer, idx int32) bool
	push(idx int32)
}

// MultiBuffer owns the chunk/descriptor Pool, the registered readers, and
// the FIFO delivery queue of finalized packets awaiting fan-out. It
// registers itself as an OnDemand handler: a MultiWriter's WriteFinalize
// enqueues a packet and requests a poll; the next Service call runs
// deliverPending, which is this object's poll_demand.
type MultiBuffer struct {
	pool *Pool
	lock sched.AtomicLock

	readers    []Reader
	debugSinks []Reader

	deliveryQueue []int32
	counter       uint64

	demand *sched.OnDemand
}

// New creates a MultiBuffer backed by a freshly allocated Pool and
// registers its delivery loop with s.
func New(s *sched.Scheduler, numChunks, numPackets int) *MultiBuffer {
	mb := &MultiBuffer{pool: NewPool(numChunks, numPackets)}
	mb.demand = s.NewOnDemand(mb.deliverPending)
	return mb
}

// RegisterReader adds r to the set of readers future packets fan out to.
func (mb *MultiBuffer) RegisterReader(r Reader) {
	mb.lock.Lock()
	defer mb.lock.Unlock()
	mb.readers = append(mb.readers, r)
}

// RegisterDebugSink adds r as a carbon-copy recipient of every finalized
// packet, regardless of Accept — spec §4.3: "An optional debug sink
// receives a carbon copy of every packet."
func (mb *MultiBuffer) RegisterDebugSink(r Reader) {
	mb.lock.Lock()
	defer mb.lock.Unlock()
	mb.debugSinks = append(mb.debugSinks, r)
}

// FreeChunks reports the pool's free chunk count.
func (mb *MultiBuffer) FreeChunks() int {
	mb.lock.Lock()
	defer mb.lock.Unlock()
	return mb.pool.FreeChunks()
}

// enqueueFinalized is called by a MultiWriter once it has committed a
// packet. The packet is not delivered synchronously: it joins the FIFO
// delivery queue and a poll is requested, so fan-out always happens from
// the scheduler's OnDemand pass rather than from inside the writer's own
// call stack.
func (mb *MultiBuffer) enqueueFinalized(idx int32) {
	mb.lock.Lock()
	mb.deliveryQueue = append(mb.deliveryQueue, idx)
	mb.lock.Unlock()
	mb.demand.RequestPoll()
}

func (mb *MultiBuffer) nextCounter() uint64 {
	mb.counter++
	return mb.counter
}

// deliverPending is the OnDemand callback: it dequeues every packet
// currently in the delivery queue and fans each one out in finalize
// order (spec §5: "packets are delivered in finalize order").
func (mb *MultiBuffer) deliverPending() {
	mb.lock.Lock()
	batch := mb.deliveryQueue
	mb.deliveryQueue = nil
	mb.lock.Unlock()

	for _, idx := range batch {
		mb.deliver(idx)
	}
}

// deliver fans packet idx out to every accepting reader and debug sink,
// sets its ref-count to the number of acceptors, and frees it immediately
// if nobody accepted it.
func (mb *MultiBuffer) deliver(idx int32) {
	mb.lock.Lock()
	readers := mb.readers
	sinks := mb.debugSinks
	mb.lock.Unlock()

	accepted := 0
	for _, r := range readers {
		if r.accept(mb, idx) {
			accepted++
			r.push(idx)
		}
	}
	for _, s := range sinks {
		accepted++
		s.push(idx)
	}

	mb.lock.Lock()
	if accepted == 0 {
		mb.pool.freePacketChain(idx)
	} else {
		mb.pool.packets[idx].refCount = int32(accepted)
	}
	mb.lock.Unlock()
}

// release decrements a packet's ref-count, freeing it back to the pool
// when the last accepting reader has finalized its read.
func (mb *MultiBuffer) release(idx int32) {
	mb.lock.Lock()
	defer mb.lock.Unlock()
	d := &mb.pool.packets[idx]
	if !d.inUse {
		return
	}
	d.refCount--
	if d.refCount <= 0 {
		mb.pool.freePacketChain(idx)
	}
}
