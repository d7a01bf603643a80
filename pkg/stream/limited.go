package stream

// LimitedRead caps a Readable's visible BytesReady at a fixed window,
// letting a Dispatch hand a Protocol handler exactly its payload without
// copying it out of the underlying buffer. ReadFinalize drains any bytes
// of the window the handler did not consume, so the underlying reader's
// own ReadFinalize (called separately by the owner) always lands on the
// next record boundary.
type LimitedRead struct {
	src       Readable
	limit     uint32
	underflow bool
}

// NewLimitedRead caps reads from src to at most n bytes.
func NewLimitedRead(src Readable, n uint32) *LimitedRead {
	return &LimitedRead{src: src, limit: n}
}

func (l *LimitedRead) BytesReady() uint32 {
	ready := l.src.BytesReady()
	if ready > l.limit {
		return l.limit
	}
	return ready
}

func (l *LimitedRead) ReadU8() uint8 {
	if l.limit == 0 {
		l.underflow = true
		return 0
	}
	v := l.src.ReadU8()
	l.limit--
	return v
}

func (l *LimitedRead) ReadBytes(dst []byte) bool {
	if uint32(len(dst)) > l.limit {
		for i := range dst {
			dst[i] = 0
		}
		l.underflow = true
		return false
	}
	ok := l.src.ReadBytes(dst)
	l.limit -= uint32(len(dst))
	return ok
}

func (l *LimitedRead) ReadConsume(n uint32) {
	if n > l.limit {
		n = l.limit
	}
	l.src.ReadConsume(n)
	l.limit -= n
}

// ReadFinalize drains whatever remains of the limited window from the
// underlying reader without finalizing the underlying reader itself.
func (l *LimitedRead) ReadFinalize() {
	if l.limit > 0 {
		l.src.ReadConsume(l.limit)
		l.limit = 0
	}
}

func (l *LimitedRead) Underflow() bool { return l.underflow || l.src.Underflow() }

func (l *LimitedRead) SetListener(ev EventListener) { l.src.SetListener(ev) }

// Remaining reports the number of bytes left in the window.
func (l *LimitedRead) Remaining() uint32 { return l.limit }
