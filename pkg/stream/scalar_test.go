package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarRoundTrip(t *testing.T) {
	var buf [64]byte
	w := NewArrayWrite(buf[:])

	WriteU16(w, 0xBEEF)
	WriteU16L(w, 0xBEEF)
	WriteU24(w, 0x123456)
	WriteU24L(w, 0x123456)
	WriteU32(w, 0xDEADBEEF)
	WriteU32L(w, 0xDEADBEEF)
	WriteU48(w, 0x0102030405)
	WriteU64(w, 0x0102030405060708)
	WriteI8(w, -5)
	WriteI16(w, -1234)
	WriteI24(w, -1)
	WriteI32(w, -70000)
	WriteI64(w, -1)
	WriteF32(w, 3.25)
	WriteF64(w, -6.5)

	require.True(t, w.WriteFinalize())

	r := NewArrayRead(w.Bytes())
	assert.Equal(t, uint16(0xBEEF), ReadU16(r))
	assert.Equal(t, uint16(0xBEEF), ReadU16L(r))
	assert.Equal(t, uint32(0x123456), ReadU24(r))
	assert.Equal(t, uint32(0x123456), ReadU24L(r))
	assert.Equal(t, uint32(0xDEADBEEF), ReadU32(r))
	assert.Equal(t, uint32(0xDEADBEEF), ReadU32L(r))
	assert.Equal(t, uint64(0x0102030405), ReadU48(r))
	assert.Equal(t, uint64(0x0102030405060708), ReadU64(r))
	assert.Equal(t, int8(-5), ReadI8(r))
	assert.Equal(t, int16(-1234), ReadI16(r))
	assert.Equal(t, int32(-1), ReadI24(r))
	assert.Equal(t, int32(-70000), ReadI32(r))
	assert.Equal(t, int64(-1), ReadI64(r))
	assert.Equal(t, float32(3.25), ReadF32(r))
	assert.Equal(t, -6.5, ReadF64(r))
	assert.False(t, r.Underflow())
}

func TestReadStrTerminatesOnNULAndAlwaysNullTerminates(t *testing.T) {
	r := NewArrayRead([]byte("hello\x00world"))
	dst := make([]byte, 16)
	n := ReadStr(r, dst)
	assert.Equal(t, "hello", string(dst[:n]))
	assert.Equal(t, byte(0), dst[n])
}

func TestReadStrTruncatesToCapacityAndStillTerminates(t *testing.T) {
	r := NewArrayRead([]byte("abcdefgh"))
	dst := make([]byte, 4)
	n := ReadStr(r, dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(dst[:n]))
	assert.Equal(t, byte(0), dst[3])
}

func TestUnderflowIsStickyAndReturnsZero(t *testing.T) {
	r := NewArrayRead([]byte{0x01})
	assert.Equal(t, uint16(0x0100), ReadU16(r))
	assert.True(t, r.Underflow())
}

func TestCopyToMovesBoundedBatches(t *testing.T) {
	src := NewArrayRead(make([]byte, 600))
	var out [600]byte
	dst := NewArrayWrite(out[:])

	moved := CopyTo(src, dst)
	assert.Equal(t, uint32(600), moved)
	assert.Equal(t, uint32(0), src.BytesReady())
	require.True(t, dst.WriteFinalize())
	assert.Equal(t, 600, dst.WrittenLen())
}
