package multibuf

import (
	"github.com/satcat5-go/satcat5/pkg/sched"
	"github.com/satcat5-go/satcat5/pkg/stream"
)

// Writer is a stream.Writeable that allocates a MultiBuffer packet on the
// first byte of each record, grows its chunk chain as needed, and hands
// the finished packet to the buffer's delivery queue on WriteFinalize.
type Writer struct {
	mb       *MultiBuffer
	maxBytes uint32
	priority uint8

	pkt      int32 // -1 when no record is in progress
	overflow bool

	clock      sched.TimeRef
	startedAt  sched.TimeVal
	watchdogMS uint64
	timer      *sched.TimerHandle
}

// NewWriter creates a Writer bound to mb. maxBytes is the per-writer
// packet size limit (spec §4.3: "Space reports the remaining capacity
// until the per-writer packet limit"); priority tags every packet this
// writer finalizes. watchdogMS of 0 uses DefaultWatchdogMS.
func NewWriter(mb *MultiBuffer, s *sched.Scheduler, clock sched.TimeRef, maxBytes uint32, priority uint8, watchdogMS uint32) *Writer {
	if watchdogMS == 0 {
		watchdogMS = DefaultWatchdogMS
	}
	w := &Writer{
		mb:         mb,
		maxBytes:   maxBytes,
		priority:   priority,
		pkt:        -1,
		clock:      clock,
		watchdogMS: uint64(watchdogMS),
	}
	// Checked every quarter of the watchdog period so a stalled packet is
	// reclaimed at most a quarter period after its watchdog interval
	// expires, not up to a whole period late.
	checkMS := uint32(watchdogMS / 4)
	if checkMS == 0 {
		checkMS = 1
	}
	w.timer = s.RegisterTimer(checkMS, checkMS, w.checkWatchdog)
	return w
}

func (w *Writer) packetInProgress() bool { return w.pkt >= 0 }

func (w *Writer) writtenLen() uint32 {
	if w.pkt < 0 {
		return 0
	}
	w.mb.lock.Lock()
	defer w.mb.lock.Unlock()
	return w.mb.pool.packets[w.pkt].length
}

func (w *Writer) Space() uint32 {
	if w.overflow {
		return 0
	}
	written := w.writtenLen()
	if written >= w.maxBytes {
		return 0
	}
	if w.mb.FreeChunks() == 0 && !w.hasTailRoom() {
		return 0
	}
	return w.maxBytes - written
}

func (w *Writer) hasTailRoom() bool {
	if w.pkt < 0 {
		return true
	}
	w.mb.lock.Lock()
	defer w.mb.lock.Unlock()
	last := w.mb.pool.packets[w.pkt].lastChunk
	if last < 0 {
		return false
	}
	return w.mb.pool.chunks[last].used < DefaultChunkPayload
}

func (w *Writer) WriteU8(v uint8) {
	if w.overflow {
		return
	}
	if !w.packetInProgress() {
		w.mb.lock.Lock()
		idx := w.mb.pool.newPacket()
		w.mb.lock.Unlock()
		if idx < 0 {
			w.overflow = true
			return
		}
		w.pkt = idx
		w.startedAt = sched.Capture(w.clock)
	}

	if w.writtenLen() >= w.maxBytes {
		w.overflow = true
		return
	}

	w.mb.lock.Lock()
	ok := w.mb.pool.appendByte(w.pkt, v)
	w.mb.lock.Unlock()
	if !ok {
		w.overflow = true
	}
}

func (w *Writer) WriteBytes(src []byte) {
	for _, b := range src {
		w.WriteU8(b)
	}
}

// WriteFinalize commits the packet and enqueues it for delivery. On
// overflow it discards the partial packet and returns false.
func (w *Writer) WriteFinalize() bool {
	if w.overflow {
		w.discard()
		return false
	}
	if w.pkt < 0 {
		return true // empty record, nothing to deliver
	}

	w.mb.lock.Lock()
	d := &w.mb.pool.packets[w.pkt]
	d.priority = w.priority
	d.counter = w.mb.nextCounter()
	idx := w.pkt
	w.mb.lock.Unlock()

	w.pkt = -1
	w.mb.enqueueFinalized(idx)
	return true
}

func (w *Writer) WriteAbort() {
	w.discard()
}

func (w *Writer) discard() {
	if w.pkt >= 0 {
		w.mb.lock.Lock()
		w.mb.pool.freePacketChain(w.pkt)
		w.mb.lock.Unlock()
	}
	w.pkt = -1
	w.overflow = false
}

func (w *Writer) Overflow() bool { return w.overflow }

// checkWatchdog discards a partial packet that has been open longer than
// watchdogMS without finalizing (spec §4.3: "A per-writer watchdog...
// discards a partial packet if it stalls").
func (w *Writer) checkWatchdog() {
	if w.pkt < 0 {
		return
	}
	if w.startedAt.ElapsedMS() >= w.watchdogMS {
		w.discard()
	}
}

// Close stops the watchdog timer. Call when the writer is no longer used.
func (w *Writer) Close() error {
	return w.timer.Close()
}

var _ stream.Writeable = (*Writer)(nil)
