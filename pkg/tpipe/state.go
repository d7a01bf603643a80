package tpipe

import "strings"

// StateFlags is the Tpipe session state bitmask (spec §4.7: "States
// (bitmask): OPEN_REQ, READY, TX_BUSY, CLOSING, TX_ONLY").
type StateFlags uint8

const (
	// StateOpenReq is set from connect() until the peer acknowledges our
	// START frame.
	StateOpenReq StateFlags = 1 << iota
	// StateReady means the session has completed its three-way open and
	// data may flow.
	StateReady
	// StateTxBusy means a data block has been sent and is awaiting
	// acknowledgement; send_block is a no-op while this is set.
	StateTxBusy
	// StateClosing is set once close() has been called.
	StateClosing
	// StateTxOnly disables acknowledgement tracking and timeouts: every
	// send consumes from the tx FIFO immediately (spec §4.7 "Tx-only
	// mode").
	StateTxOnly
)

func (f StateFlags) String() string {
	var parts []string
	if f&StateOpenReq != 0 {
		parts = append(parts, "OPEN_REQ")
	}
	if f&StateReady != 0 {
		parts = append(parts, "READY")
	}
	if f&StateTxBusy != 0 {
		parts = append(parts, "TX_BUSY")
	}
	if f&StateClosing != 0 {
		parts = append(parts, "CLOSING")
	}
	if f&StateTxOnly != 0 {
		parts = append(parts, "TX_ONLY")
	}
	if len(parts) == 0 {
		return "CLOSED"
	}
	return strings.Join(parts, "|")
}
