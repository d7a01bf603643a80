package stream

import "math"

// Scalar reads and writes are big-endian (network byte order) unless the
// name carries the L suffix for little-endian. Widths 8/16/24/32/48/64 for
// integers and IEEE-754 32/64 for floats are the full contractual set; a
// 24-bit signed read sign-extends into the returned int32, and the float
// readers reinterpret the integer bit pattern rather than converting it.

func ReadU16(r Readable) uint16 {
	var b [2]byte
	r.ReadBytes(b[:])
	return uint16(b[0])<<8 | uint16(b[1])
}

func ReadU16L(r Readable) uint16 {
	var b [2]byte
	r.ReadBytes(b[:])
	return uint16(b[1])<<8 | uint16(b[0])
}

func ReadU24(r Readable) uint32 {
	var b [3]byte
	r.ReadBytes(b[:])
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func ReadU24L(r Readable) uint32 {
	var b [3]byte
	r.ReadBytes(b[:])
	return uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
}

func ReadU32(r Readable) uint32 {
	var b [4]byte
	r.ReadBytes(b[:])
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func ReadU32L(r Readable) uint32 {
	var b [4]byte
	r.ReadBytes(b[:])
	return uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
}

func ReadU48(r Readable) uint64 {
	var b [6]byte
	r.ReadBytes(b[:])
	var v uint64
	for i := 0; i < 6; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func ReadU48L(r Readable) uint64 {
	var b [6]byte
	r.ReadBytes(b[:])
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func ReadU64(r Readable) uint64 {
	var b [8]byte
	r.ReadBytes(b[:])
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func ReadU64L(r Readable) uint64 {
	var b [8]byte
	r.ReadBytes(b[:])
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func ReadI8(r Readable) int8  { return int8(r.ReadU8()) }
func ReadI16(r Readable) int16  { return int16(ReadU16(r)) }
func ReadI16L(r Readable) int16 { return int16(ReadU16L(r)) }
func ReadI32(r Readable) int32  { return int32(ReadU32(r)) }
func ReadI32L(r Readable) int32 { return int32(ReadU32L(r)) }
func ReadI64(r Readable) int64  { return int64(ReadU64(r)) }
func ReadI64L(r Readable) int64 { return int64(ReadU64L(r)) }

// ReadI24 sign-extends a 24-bit two's-complement value into an int32.
func ReadI24(r Readable) int32 {
	u := ReadU24(r)
	return signExtend24(u)
}

func ReadI24L(r Readable) int32 {
	u := ReadU24L(r)
	return signExtend24(u)
}

func signExtend24(u uint32) int32 {
	if u&0x800000 != 0 {
		u |= 0xFF000000
	}
	return int32(u)
}

func ReadF32(r Readable) float32  { return math.Float32frombits(ReadU32(r)) }
func ReadF32L(r Readable) float32 { return math.Float32frombits(ReadU32L(r)) }
func ReadF64(r Readable) float64  { return math.Float64frombits(ReadU64(r)) }
func ReadF64L(r Readable) float64 { return math.Float64frombits(ReadU64L(r)) }

func WriteU16(w Writeable, v uint16) {
	w.WriteBytes([]byte{byte(v >> 8), byte(v)})
}

func WriteU16L(w Writeable, v uint16) {
	w.WriteBytes([]byte{byte(v), byte(v >> 8)})
}

func WriteU24(w Writeable, v uint32) {
	w.WriteBytes([]byte{byte(v >> 16), byte(v >> 8), byte(v)})
}

func WriteU24L(w Writeable, v uint32) {
	w.WriteBytes([]byte{byte(v), byte(v >> 8), byte(v >> 16)})
}

func WriteU32(w Writeable, v uint32) {
	w.WriteBytes([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func WriteU32L(w Writeable, v uint32) {
	w.WriteBytes([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func WriteU48(w Writeable, v uint64) {
	var b [6]byte
	for i := 5; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	w.WriteBytes(b[:])
}

func WriteU48L(w Writeable, v uint64) {
	var b [6]byte
	for i := 0; i < 6; i++ {
		b[i] = byte(v)
		v >>= 8
	}
	w.WriteBytes(b[:])
}

func WriteU64(w Writeable, v uint64) {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	w.WriteBytes(b[:])
}

func WriteU64L(w Writeable, v uint64) {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
	w.WriteBytes(b[:])
}

func WriteI8(w Writeable, v int8)    { w.WriteU8(uint8(v)) }
func WriteI16(w Writeable, v int16)  { WriteU16(w, uint16(v)) }
func WriteI16L(w Writeable, v int16) { WriteU16L(w, uint16(v)) }
func WriteI24(w Writeable, v int32)  { WriteU24(w, uint32(v)&0xFFFFFF) }
func WriteI24L(w Writeable, v int32) { WriteU24L(w, uint32(v)&0xFFFFFF) }
func WriteI32(w Writeable, v int32)  { WriteU32(w, uint32(v)) }
func WriteI32L(w Writeable, v int32) { WriteU32L(w, uint32(v)) }
func WriteI64(w Writeable, v int64)  { WriteU64(w, uint64(v)) }
func WriteI64L(w Writeable, v int64) { WriteU64L(w, uint64(v)) }

func WriteF32(w Writeable, v float32)  { WriteU32(w, math.Float32bits(v)) }
func WriteF32L(w Writeable, v float32) { WriteU32L(w, math.Float32bits(v)) }
func WriteF64(w Writeable, v float64)  { WriteU64(w, math.Float64bits(v)) }
func WriteF64L(w Writeable, v float64) { WriteU64L(w, math.Float64bits(v)) }

// WriteStr writes s without a trailing NUL.
func WriteStr(w Writeable, s string) {
	w.WriteBytes([]byte(s))
}

// ReadStr reads until a NUL byte or end-of-input, writing at most
// len(dst)-1 bytes into dst and always NUL-terminating it. It returns the
// number of bytes written excluding the terminator.
func ReadStr(r Readable, dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	n := 0
	for n < len(dst)-1 {
		if r.BytesReady() == 0 {
			break
		}
		b := r.ReadU8()
		if b == 0 {
			break
		}
		dst[n] = b
		n++
	}
	dst[n] = 0
	return n
}

// copyBatch bounds a single CopyTo transfer step so the helper never needs
// to allocate a buffer sized to the whole record.
const copyBatch = 256

// CopyTo moves bytes from r into w, a bounded batch at a time, until r has
// nothing left ready or w has no space. It returns the number of bytes
// moved. Neither side is finalized.
func CopyTo(r Readable, w Writeable) uint32 {
	var scratch [copyBatch]byte
	var moved uint32
	for {
		n := r.BytesReady()
		if n == 0 {
			break
		}
		if s := w.Space(); s == 0 {
			break
		} else if uint32(len(scratch)) < n {
			n = uint32(len(scratch))
			if s < n {
				n = s
			}
		} else if s < n {
			n = s
		}
		buf := scratch[:n]
		if !r.ReadBytes(buf) {
			break
		}
		w.WriteBytes(buf)
		moved += n
	}
	return moved
}
