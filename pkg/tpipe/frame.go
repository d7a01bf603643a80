package tpipe

import "github.com/satcat5-go/satcat5/pkg/stream"

// MaxPayload is the largest payload a single Tpipe frame may carry (spec
// §4.7/§6: "Payload length in flags[9:0] must not exceed 512").
const MaxPayload = 512

const headerLen = 6

const (
	flagStart = 1 << 15
	flagStop  = 1 << 14
	flagLenMask = 0x03ff
)

// frame is the decoded 6-byte Tpipe header plus however much payload the
// caller asked for.
type frame struct {
	start, stop bool
	length      int
	txPos       uint16
	rxPos       uint16
}

// writeFrame encodes hdr and payload[:hdr.length] to w and finalizes it.
// w must already have at least headerLen+hdr.length bytes of Space.
func writeFrame(w stream.Writeable, hdr frame, payload []byte) bool {
	flags := uint16(hdr.length) & flagLenMask
	if hdr.start {
		flags |= flagStart
	}
	if hdr.stop {
		flags |= flagStop
	}
	stream.WriteU16(w, flags)
	stream.WriteU16(w, hdr.txPos)
	stream.WriteU16(w, hdr.rxPos)
	if hdr.length > 0 {
		w.WriteBytes(payload[:hdr.length])
	}
	return w.WriteFinalize()
}

// readFrame decodes the 6-byte header from r, rejecting (ok false) a
// header whose length exceeds MaxPayload. The caller is responsible
// for reading exactly hdr.length payload bytes afterward (r's remaining
// BytesReady equals hdr.length when ok is true and r was bounded to the
// whole frame).
func readFrame(r stream.Readable) (hdr frame, ok bool) {
	if r.BytesReady() < headerLen {
		return frame{}, false
	}
	flags := stream.ReadU16(r)
	hdr.start = flags&flagStart != 0
	hdr.stop = flags&flagStop != 0
	hdr.length = int(flags & flagLenMask)
	hdr.txPos = stream.ReadU16(r)
	hdr.rxPos = stream.ReadU16(r)
	if hdr.length > MaxPayload {
		return frame{}, false
	}
	return hdr, true
}
