// Package stream defines the byte-stream I/O abstraction that every other
// package in this module builds on: small Readable/Writeable capability
// interfaces with well-defined finalize/abort semantics, plus the endian
// scalar helpers and composable adapters built on top of them.
//
// The adapters work over caller-provided fixed buffers. The scalar helpers,
// WriteStr and CopyTo hand their temporary byte slices to a Readable or
// Writeable interface, so each call allocates those temporaries on the heap.
package stream

// EventListener is notified when a Readable gains a new readable record.
// Destroying a Readable notifies its registered listener one last time so
// it can unwind any pending state.
type EventListener interface {
	DataRcvd()
}

// Readable is the read side of the byte-stream contract. Implementations
// are single-reader: at most one in-progress record is visible at a time.
//
// Underflow (reading past BytesReady) is not fatal: it sets a sticky flag
// readable via Underflow, and ReadU8/ReadBytes return zero-valued results.
type Readable interface {
	// BytesReady reports how many bytes of the current record are
	// available to read right now.
	BytesReady() uint32

	// ReadU8 returns the next byte, or 0 and sets the underflow flag if
	// none is ready.
	ReadU8() uint8

	// ReadBytes fills dst completely from the stream. It returns false
	// and sets the underflow flag if fewer than len(dst) bytes were
	// ready; in that case dst holds whatever could be read followed by
	// zeroes.
	ReadBytes(dst []byte) bool

	// ReadConsume discards up to n bytes of the current record without
	// copying them anywhere.
	ReadConsume(n uint32)

	// ReadFinalize releases the current record, moving to the next one
	// if the underlying buffer is in packet mode.
	ReadFinalize()

	// Underflow reports whether a read has been attempted past
	// BytesReady since the last finalize.
	Underflow() bool

	// SetListener registers (or clears, with nil) the EventListener
	// notified when a new record becomes readable.
	SetListener(l EventListener)
}

// Writeable is the write side of the byte-stream contract. A write whose
// combined width exceeds Space puts the object into a sticky overflow
// state: WriteFinalize then returns false and discards the in-flight
// record; WriteAbort always discards it without marking overflow.
type Writeable interface {
	// Space reports how many more bytes can be written to the
	// in-progress record before overflow.
	Space() uint32

	// WriteU8 appends one byte, setting the overflow flag if Space is 0.
	WriteU8(v uint8)

	// WriteBytes appends src in full or sets overflow and appends as
	// much as fits (packet-mode buffers may instead discard the whole
	// record on overflow; see the concrete type's documentation).
	WriteBytes(src []byte)

	// WriteFinalize commits the in-progress record. It returns false,
	// discarding the record, if overflow was set since the last
	// finalize/abort.
	WriteFinalize() bool

	// WriteAbort discards the in-progress record and clears overflow.
	WriteAbort()

	// Overflow reports whether a write has exceeded Space since the
	// last finalize/abort.
	Overflow() bool
}
