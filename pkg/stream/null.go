package stream

// NullWrite is a Writeable sink with effectively unbounded space that
// discards everything written to it. Useful as a placeholder destination
// before a real one is bound, or to measure a would-be write's size.
type NullWrite struct {
	n int
}

func (n *NullWrite) Space() uint32           { return 1<<31 - 1 }
func (n *NullWrite) WriteU8(v uint8)         { n.n++ }
func (n *NullWrite) WriteBytes(src []byte)   { n.n += len(src) }
func (n *NullWrite) WriteFinalize() bool     { n.n = 0; return true }
func (n *NullWrite) WriteAbort()             { n.n = 0 }
func (n *NullWrite) Overflow() bool          { return false }

// NullRead is a Readable with no data, always reporting zero bytes ready.
// Reads return zeroes; it keeps no state, so Underflow always reports
// false.
type NullRead struct{}

func (NullRead) BytesReady() uint32           { return 0 }
func (NullRead) ReadU8() uint8                { return 0 }
func (NullRead) ReadBytes(dst []byte) bool {
	for i := range dst {
		dst[i] = 0
	}
	return len(dst) == 0
}
func (NullRead) ReadConsume(n uint32)         {}
func (NullRead) ReadFinalize()                {}
func (NullRead) Underflow() bool              { return false }
func (NullRead) SetListener(l EventListener)  {}

// NullSink registers itself as the EventListener on a Readable and, on
// every notification, drains and finalizes that record so the source
// never backs up. It is the adapter of choice for a hardware port that
// must be serviced but whose inbound data nobody wants (e.g. a disabled
// MultiReader).
type NullSink struct {
	src Readable
}

// NewNullSink binds the sink as src's listener and returns it.
func NewNullSink(src Readable) *NullSink {
	s := &NullSink{src: src}
	src.SetListener(s)
	return s
}

// DataRcvd implements EventListener: drain everything ready and finalize.
func (s *NullSink) DataRcvd() {
	for s.src.BytesReady() > 0 {
		s.src.ReadConsume(s.src.BytesReady())
	}
	s.src.ReadFinalize()
}
