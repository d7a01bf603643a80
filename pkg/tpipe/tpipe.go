// Package tpipe implements the lockstep reliable byte-pipe protocol: a
// transport-agnostic stop-and-wait scheme with a three-way open, a sliding
// acknowledge window bounded to 512 bytes, timer-driven retransmission,
// duplicate suppression, and graceful close (spec §4.7).
package tpipe

import (
	"math/rand"

	"github.com/satcat5-go/satcat5/pkg/sched"
	"github.com/satcat5-go/satcat5/pkg/stream"
	"github.com/satcat5-go/satcat5/pkg/telemetry"
)

// Default timing parameters (spec §4.7/§5).
const (
	DefaultRetransmitIntervalMS = 500
	DefaultTimeoutLimitMS       = 30000
	sendRetryMS                 = 10 // spec §5: "polls at 10 ms until the interface accepts the frame"
)

// StateListener is notified whenever a Tpipe session's state changes.
type StateListener interface {
	TpipeStateChanged(session string, from, to StateFlags)
}

// Tpipe is one lockstep reliable byte-pipe session bound to a Transport.
// The application writes to and reads from the session's 512-byte tx/rx
// FIFOs (spec §3's per-connection state); the state machine takes care of
// framing, acknowledgement, and retransmission.
type Tpipe struct {
	transport Transport
	sched     *sched.Scheduler

	session string
	state   StateFlags

	txPosition, txReference uint16
	rxPosition, rxReference uint16
	pendingLen               int

	tx byteRing
	rx byteRing

	eos bool

	retransmitIntervalMS uint32
	timeoutLimitMS       uint32
	elapsedSinceProgress uint64

	timer *sched.TimerHandle

	listeners []StateListener
	emitter   *telemetry.Emitter
	iface     string
}

// New creates a Tpipe bound to transport, identified by session (used only
// in telemetry and listener callbacks). Defaults match spec §4.7:
// retransmit_interval 500 ms, timeout_limit 30 s.
func New(s *sched.Scheduler, transport Transport, session string) *Tpipe {
	t := &Tpipe{
		transport:            transport,
		sched:                s,
		session:              session,
		retransmitIntervalMS: DefaultRetransmitIntervalMS,
		timeoutLimitMS:       DefaultTimeoutLimitMS,
	}
	transport.bind(t.frameRcvd)
	return t
}

// SetEmitter attaches telemetry; both may be nil.
func (t *Tpipe) SetEmitter(e *telemetry.Emitter, iface string) { t.emitter, t.iface = e, iface }

// AddListener registers l for state-change notifications.
func (t *Tpipe) AddListener(l StateListener) { t.listeners = append(t.listeners, l) }

// EnableTxOnly puts the session into tx-only mode (spec §4.7): every send
// consumes from the tx FIFO immediately, with no acknowledgement tracking
// or timeouts. Must be called before Connect.
func (t *Tpipe) EnableTxOnly() { t.state |= StateTxOnly }

// SetRetransmitIntervalMS overrides the default 500 ms retransmit period.
func (t *Tpipe) SetRetransmitIntervalMS(ms uint32) { t.retransmitIntervalMS = ms }

// SetTimeoutLimitMS overrides the default 30 s timeout.
func (t *Tpipe) SetTimeoutLimitMS(ms uint32) { t.timeoutLimitMS = ms }

// State returns the current state bitmask.
func (t *Tpipe) State() StateFlags { return t.state }

// Ready reports whether the three-way open has completed.
func (t *Tpipe) Ready() bool { return t.state&StateReady != 0 }

// Completed reports readiness with zero bytes in flight (spec §8's
// "Tpipe open-send-close" scenario: "both sides report ready and
// completed with zero bytes in flight").
func (t *Tpipe) Completed() bool {
	return t.Ready() && t.pendingLen == 0 && t.tx.Len() == 0
}

// EOS reports whether the peer's STOP frame has been observed.
func (t *Tpipe) EOS() bool { return t.eos }

func (t *Tpipe) setState(next StateFlags, reason string) {
	if next == t.state {
		return
	}
	prev := t.state
	t.state = next
	for _, l := range t.listeners {
		l.TpipeStateChanged(t.session, prev, next)
	}
	if t.emitter != nil {
		_ = t.emitter.Emit(telemetry.EventTpipeStateChange, "tpipe state changed", t.iface, nil,
			telemetry.TpipeStateChangeData{Session: t.session, From: prev.String(), To: next.String(), Reason: reason})
	}
}

// Connect begins the three-way open: randomise tx_position/rx_position,
// enter OPEN_REQ, and send a START frame (spec §4.7 "Opening").
func (t *Tpipe) Connect() {
	t.txPosition = uint16(rand.Uint32())
	t.rxPosition = uint16(rand.Uint32())
	t.txReference = t.txPosition
	t.rxReference = t.rxPosition
	t.setState(t.state|StateOpenReq, "connect")
	t.sendControl(true, false)
	t.armRetransmit()
}

// Close sets CLOSING and, if READY, sends one STOP frame without waiting
// for acknowledgement (spec §4.7 "Closing").
func (t *Tpipe) Close() {
	wasReady := t.Ready()
	t.setState((t.state | StateClosing) &^ (StateReady | StateOpenReq | StateTxBusy), "close")
	if wasReady {
		t.sendControl(false, true)
	}
	t.stopTimer()
}

// Write queues up to len(data) bytes for transmission, returning the
// number actually accepted (bounded by the 512-byte tx FIFO's free
// space), and opportunistically attempts to send if nothing is currently
// in flight.
func (t *Tpipe) Write(data []byte) int {
	n := t.tx.Push(data)
	if n > 0 {
		t.sendBlock()
	}
	return n
}

// SpaceAvailable reports how many more bytes Write would currently accept.
func (t *Tpipe) SpaceAvailable() int { return t.tx.Space() }

// Read copies up to len(buf) bytes out of the rx FIFO, returning the
// count copied.
func (t *Tpipe) Read(buf []byte) int { return t.rx.Read(buf) }

// BytesAvailable reports how many bytes Read would currently return.
func (t *Tpipe) BytesAvailable() int { return t.rx.Len() }

// sendControl emits a zero-length frame carrying the current
// tx_position/rx_position, optionally flagged START or STOP.
func (t *Tpipe) sendControl(start, stop bool) {
	hdr := frame{start: start, stop: stop, txPos: t.txPosition, rxPos: t.rxPosition}
	w := t.transport.OpenWrite(headerLen)
	if w == nil {
		t.scheduleRetry()
		return
	}
	writeFrame(w, hdr, nil)
}

// sendBlock emits the next data frame, if any is owed: in tx-only mode it
// consumes from the FIFO immediately on a successful write; in ack-
// tracked mode it leaves the bytes in the FIFO under TX_BUSY until the
// peer's rx_position confirms them.
func (t *Tpipe) sendBlock() {
	if !t.Ready() || t.state&StateTxBusy != 0 {
		return
	}
	n := t.tx.Len()
	if n == 0 {
		return
	}
	if n > MaxPayload {
		n = MaxPayload
	}

	var scratch [MaxPayload]byte
	payload := t.tx.Peek(scratch[:], n)

	hdr := frame{length: n, txPos: t.txPosition + uint16(n), rxPos: t.rxPosition}
	w := t.transport.OpenWrite(headerLen + n)
	if w == nil {
		t.scheduleRetry()
		return
	}

	txOnly := t.state&StateTxOnly != 0
	if !txOnly {
		// Mark the block in flight before writing it: a transport that
		// delivers synchronously hands the peer's acknowledgement back
		// from inside writeFrame, and applyAck only honours it under
		// TX_BUSY.
		t.pendingLen = n
		t.setState(t.state|StateTxBusy, "send_block")
	}
	if !writeFrame(w, hdr, payload) {
		t.scheduleRetry()
		return
	}

	if txOnly {
		t.tx.Consume(n)
		t.txPosition += uint16(n)
		return
	}
	t.armRetransmit()
}

func (t *Tpipe) scheduleRetry() {
	if t.timer == nil {
		t.timer = t.sched.RegisterTimer(sendRetryMS, 0, t.onTimer)
		return
	}
	t.timer.Reset(sendRetryMS)
}

func (t *Tpipe) armRetransmit() {
	if t.state&StateTxOnly != 0 {
		return
	}
	jitter := t.retransmitIntervalMS / 2
	if jitter > 0 {
		jitter = uint32(rand.Intn(int(jitter) + 1))
	}
	delay := t.retransmitIntervalMS + jitter
	if t.timer == nil {
		t.timer = t.sched.RegisterTimer(delay, 0, t.onTimer)
		return
	}
	t.timer.Reset(delay)
}

func (t *Tpipe) stopTimer() {
	if t.timer != nil {
		_ = t.timer.Close()
		t.timer = nil
	}
}

// onTimer fires on retransmit/retry expiry (spec §4.7 "Retransmission").
func (t *Tpipe) onTimer() {
	t.timer = nil

	switch {
	case t.state&StateOpenReq != 0:
		t.sendControl(true, false)
	case t.state&StateTxBusy != 0:
		t.resendBlock()
	default:
		// Nothing in flight: send any queued block whose OpenWrite
		// found the interface not ready.
		t.sendBlock()
		return
	}

	t.elapsedSinceProgress += uint64(t.retransmitIntervalMS)
	if t.elapsedSinceProgress >= uint64(t.timeoutLimitMS) {
		t.forceClose("timeout")
		return
	}
	t.armRetransmit()
}

// resendBlock re-sends the still-unacknowledged prefix of the tx FIFO
// without disturbing FIFO contents (spec §4.7: "resends the last block if
// still unacknowledged").
func (t *Tpipe) resendBlock() {
	n := t.pendingLen
	if n == 0 {
		return
	}
	var scratch [MaxPayload]byte
	payload := t.tx.Peek(scratch[:], n)
	hdr := frame{length: n, txPos: t.txPosition + uint16(n), rxPos: t.rxPosition}
	w := t.transport.OpenWrite(headerLen + n)
	if w == nil {
		return
	}
	writeFrame(w, hdr, payload)
}

func (t *Tpipe) forceClose(reason string) {
	t.setState(0, reason)
	t.stopTimer()
}

// frameRcvd is the Transport callback: it advances the open handshake,
// applies acknowledgement and duplicate-suppression rules, and appends
// newly accepted bytes to the rx FIFO (spec §4.7 "Steady state" /
// "Duplicate suppression").
func (t *Tpipe) frameRcvd(hdr frame, payload stream.Readable) {
	var scratch [MaxPayload]byte
	data := scratch[:hdr.length]
	if hdr.length > 0 {
		payload.ReadBytes(data)
	}

	if hdr.start {
		t.handleStart(hdr)
		return
	}
	if hdr.stop {
		t.eos = true
		t.forceClose("peer_stop")
		return
	}

	// Any non-START reply received while still in OPEN_REQ completes the
	// three-way open: the peer has already adopted our positions and this
	// is its first non-START frame bearing its own back (spec §4.7
	// "Opening").
	if t.state&StateOpenReq != 0 {
		t.stopTimer()
		t.setState((t.state &^ StateOpenReq) | StateReady, "open_ack")
		t.elapsedSinceProgress = 0
	}

	t.applyAck(hdr.rxPos)
	if hdr.length > 0 {
		t.applyData(hdr.txPos, data)
		// Every data frame gets acked back, including a full duplicate
		// whose payload was already applied: the duplicate only exists
		// because the peer's prior ack was itself lost, so staying
		// silent here would stall the retransmit loop forever. Pure
		// acknowledgement frames (length 0) never trigger a reciprocal
		// pure ack (spec §4.7 "Duplicate suppression") — that rule is
		// enforced simply by this branch not firing for them.
		t.sendControl(false, false)
	}
}

// handleStart implements the responder side of the three-way open: a fresh
// START adopts the initiator's positions, and a duplicate START arriving
// after the session is already READY (the initiator's own retransmit,
// racing a lost ack) is answered idempotently without disturbing session
// state — the resolution [[recorded]] for the source's `dupe_request`
// ambiguity noted in spec §9.
func (t *Tpipe) handleStart(hdr frame) {
	if t.Ready() && hdr.txPos == t.rxReference && hdr.rxPos == t.txReference {
		t.sendControl(false, false)
		return
	}

	// Fresh open: adopt the initiator's positions.
	t.rxPosition = hdr.txPos
	t.rxReference = hdr.txPos
	t.txPosition = hdr.rxPos
	t.txReference = hdr.rxPos
	t.setState(t.state|StateReady, "open_accept")
	t.sendControl(false, false)
}

// applyAck advances txPosition/pendingLen by however much of the
// in-flight block the peer's rx_position newly confirms, clearing
// TX_BUSY once the whole block is acknowledged (spec §4.7 "Steady
// state": "Data is not consumed from the local tx FIFO until the remote
// acknowledges via rx_position; then read_consume advances by the
// difference").
func (t *Tpipe) applyAck(peerRx uint16) bool {
	if t.state&StateTxBusy == 0 {
		return false
	}
	diff := int(int16(peerRx - t.txPosition))
	if diff <= 0 {
		return false
	}
	if diff > t.pendingLen {
		diff = t.pendingLen
	}
	t.tx.Consume(diff)
	t.txPosition += uint16(diff)
	t.pendingLen -= diff
	if t.pendingLen == 0 {
		t.setState(t.state&^StateTxBusy, "ack_complete")
		t.elapsedSinceProgress = 0
		t.stopTimer()
	}
	return true
}

// applyData appends newly-arrived bytes to the rx FIFO, trimming any
// prefix overlap with bytes already accepted (spec §4.7 "Duplicate
// suppression": "a frame whose payload overlaps already-received bytes is
// accepted only for the new suffix").
func (t *Tpipe) applyData(peerTx uint16, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	startSeq := peerTx - uint16(len(data))
	alreadyHave := int(int16(t.rxPosition - startSeq))
	if alreadyHave < 0 {
		alreadyHave = 0
	}
	if alreadyHave >= len(data) {
		return false // fully duplicate
	}
	fresh := data[alreadyHave:]
	accepted := t.rx.Push(fresh)
	// Advance only past what the rx FIFO took, so bytes it had no room
	// for stay unacknowledged and are resent.
	t.rxPosition = startSeq + uint16(alreadyHave+accepted)
	return true
}
