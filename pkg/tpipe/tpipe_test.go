package tpipe

import (
	"testing"

	"github.com/satcat5-go/satcat5/pkg/sched"
	"github.com/satcat5-go/satcat5/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually-advanced TimeRef, letting tests drive retransmit
// timers deterministically instead of depending on wall time.
type fakeClock struct{ ticks uint64 }

func (c *fakeClock) Ticks() uint64          { return c.ticks }
func (c *fakeClock) TicksPerSecond() uint64 { return 1000 }

// memTransport is an in-memory Transport double, connected directly to a
// peer memTransport without any net package involvement: OpenWrite's
// WriteFinalize synchronously hands the encoded frame to the peer's bound
// frameHandler, optionally dropping it per a caller-supplied predicate
// (used by the frame-loss scenario).
type memTransport struct {
	onFrame frameHandler
	peer    *memTransport
	drop    func(attempt int) bool
	sent    int
}

func (m *memTransport) bind(fn frameHandler) { m.onFrame = fn }
func (m *memTransport) Ready() bool          { return true }

func (m *memTransport) OpenWrite(length int) stream.Writeable {
	return &memWrite{m: m, aw: stream.NewArrayWrite(make([]byte, length))}
}

func (m *memTransport) deliver(data []byte) {
	m.sent++
	if m.drop != nil && m.drop(m.sent) {
		return
	}
	if m.peer == nil || m.peer.onFrame == nil {
		return
	}
	r := stream.NewArrayRead(data)
	hdr, ok := readFrame(r)
	if !ok {
		return
	}
	limited := stream.NewLimitedRead(r, uint32(hdr.length))
	m.peer.onFrame(hdr, limited)
}

type memWrite struct {
	m  *memTransport
	aw *stream.ArrayWrite
}

func (w *memWrite) Space() uint32       { return w.aw.Space() }
func (w *memWrite) WriteU8(v uint8)     { w.aw.WriteU8(v) }
func (w *memWrite) WriteBytes(b []byte) { w.aw.WriteBytes(b) }
func (w *memWrite) WriteAbort()         { w.aw.WriteAbort() }
func (w *memWrite) Overflow() bool      { return w.aw.Overflow() }
func (w *memWrite) WriteFinalize() bool {
	if !w.aw.WriteFinalize() {
		return false
	}
	w.m.deliver(w.aw.Bytes())
	return true
}

var _ stream.Writeable = (*memWrite)(nil)
var _ Transport = (*memTransport)(nil)

// harness wires up two Tpipe sessions over a pair of peer memTransports,
// each with its own Scheduler and manually-advanced clock.
type harness struct {
	a, b       *Tpipe
	schedA     *sched.Scheduler
	schedB     *sched.Scheduler
	clockA     *fakeClock
	clockB     *fakeClock
	timekeepA  *sched.Timekeeper
	timekeepB  *sched.Timekeeper
}

func newHarness(dropA, dropB func(int) bool) *harness {
	tA := &memTransport{drop: dropA}
	tB := &memTransport{drop: dropB}
	tA.peer, tB.peer = tB, tA

	schedA, schedB := sched.New(false), sched.New(false)
	h := &harness{
		a:      New(schedA, tA, "A"),
		b:      New(schedB, tB, "B"),
		schedA: schedA,
		schedB: schedB,
		clockA: &fakeClock{},
		clockB: &fakeClock{},
	}
	h.timekeepA = sched.NewTimekeeper(schedA, h.clockA)
	h.timekeepB = sched.NewTimekeeper(schedB, h.clockB)
	return h
}

// advance moves both sides' clocks forward by ms milliseconds and services
// both schedulers, letting any due retransmit timers fire.
func (h *harness) advance(ms uint64) {
	h.clockA.ticks += ms
	h.clockB.ticks += ms
	h.timekeepA.RequestPoll()
	h.timekeepB.RequestPoll()
	h.schedA.Service()
	h.schedB.Service()
}

func TestTpipeOpenSendClose(t *testing.T) {
	h := newHarness(nil, nil)

	h.a.Connect()
	require.True(t, h.a.Ready(), "connect completes synchronously over a loopback transport")
	require.True(t, h.b.Ready())
	assert.True(t, h.a.Completed())
	assert.True(t, h.b.Completed())

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}

	// The tx and rx FIFOs each hold 512 bytes at a time, so Write must be
	// fed incrementally as earlier blocks are acknowledged, and b's rx
	// FIFO drained as blocks arrive.
	sent := 0
	got := make([]byte, 0, len(payload))
	var chunk [MaxPayload]byte
	for i := 0; i < 64 && len(got) < len(payload); i++ {
		if sent < len(payload) {
			sent += h.a.Write(payload[sent:])
		}
		h.advance(0)
		got = append(got, chunk[:h.b.Read(chunk[:])]...)
	}
	require.Equal(t, len(payload), sent)
	require.Equal(t, len(payload), len(got))
	assert.Equal(t, payload, got)

	assert.True(t, h.a.Completed())

	h.a.Close()
	assert.True(t, h.b.EOS())
}

func TestTpipeSurvivesFrameLoss(t *testing.T) {
	dropEveryOther := func() func(int) bool {
		n := 0
		return func(int) bool {
			n++
			return n%2 == 0
		}
	}

	h := newHarness(dropEveryOther(), nil)
	h.a.SetRetransmitIntervalMS(100)
	h.a.SetTimeoutLimitMS(10000)
	h.b.SetRetransmitIntervalMS(100)
	h.b.SetTimeoutLimitMS(10000)

	h.a.Connect()

	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	// b's rx FIFO holds 512 bytes, so it is drained as blocks arrive.
	sent := 0
	got := make([]byte, 0, len(payload))
	var chunk [MaxPayload]byte
	const step = 150
	for i := 0; i < 400 && len(got) < len(payload); i++ {
		if sent < len(payload) {
			sent += h.a.Write(payload[sent:])
		}
		h.advance(step)
		got = append(got, chunk[:h.b.Read(chunk[:])]...)
	}

	require.Equal(t, len(payload), len(got), "every byte must eventually arrive despite dropped frames")
	assert.Equal(t, payload, got)
}

func TestTpipeTxOnlyModeBypassesAcks(t *testing.T) {
	h := newHarness(nil, nil)
	h.a.EnableTxOnly()
	h.a.Connect()
	require.True(t, h.a.Ready())

	payload := []byte("tx-only data")
	n := h.a.Write(payload)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, 0, h.a.tx.Len(), "tx-only mode consumes the FIFO immediately rather than waiting for an ack")
	assert.Equal(t, payload, func() []byte {
		got := make([]byte, len(payload))
		h.b.Read(got)
		return got
	}())
}
