package packetbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamModeFinalizeMakesBytesVisible(t *testing.T) {
	pb := New(make([]byte, 16))
	assert.Equal(t, uint32(0), pb.BytesReady())

	pb.WriteBytes([]byte{1, 2, 3})
	assert.Equal(t, uint32(0), pb.BytesReady(), "not visible before finalize")

	require.True(t, pb.WriteFinalize())
	assert.Equal(t, uint32(3), pb.BytesReady())

	var dst [3]byte
	require.True(t, pb.ReadBytes(dst[:]))
	assert.Equal(t, []byte{1, 2, 3}, dst[:])
	assert.Equal(t, uint32(0), pb.BytesReady())
}

func TestWriteAbortDiscards(t *testing.T) {
	pb := New(make([]byte, 16))
	pb.WriteBytes([]byte{1, 2, 3})
	pb.WriteAbort()
	assert.Equal(t, uint32(16), pb.Space())
	pb.WriteBytes([]byte{9})
	require.True(t, pb.WriteFinalize())
	assert.Equal(t, uint32(1), pb.BytesReady())
}

func TestStreamModeOverflowCommitsPartial(t *testing.T) {
	pb := New(make([]byte, 4))
	pb.WriteBytes([]byte{1, 2, 3, 4, 5})
	assert.True(t, pb.Overflow())
	ok := pb.WriteFinalize()
	assert.False(t, ok, "write_finalize reports overflow")
	assert.Equal(t, uint32(4), pb.BytesReady(), "stream mode keeps the partial commit")
}

func TestPacketModeOverflowRejectsWholeRecord(t *testing.T) {
	pb := NewPacketMode(make([]byte, 8), make([]uint32, 4))
	pb.WriteBytes(make([]byte, 20))
	assert.True(t, pb.Overflow())
	ok := pb.WriteFinalize()
	assert.False(t, ok)
	assert.Equal(t, uint32(0), pb.BytesReady())

	pb.WriteBytes([]byte{1, 2, 3})
	require.True(t, pb.WriteFinalize())
	assert.Equal(t, uint32(3), pb.BytesReady())
}

func TestPacketModeReadFinalizeAdvancesToNextPacket(t *testing.T) {
	pb := NewPacketMode(make([]byte, 32), make([]uint32, 4))

	pb.WriteBytes([]byte{1, 2, 3})
	require.True(t, pb.WriteFinalize())
	pb.WriteBytes([]byte{4, 5})
	require.True(t, pb.WriteFinalize())

	assert.Equal(t, uint32(3), pb.BytesReady())
	assert.Equal(t, uint8(1), pb.ReadU8())
	pb.ReadFinalize() // drops the other 2 unread bytes of packet 1

	assert.Equal(t, uint32(2), pb.BytesReady())
	var dst [2]byte
	require.True(t, pb.ReadBytes(dst[:]))
	assert.Equal(t, []byte{4, 5}, dst[:])
}

func TestPeekDoesNotConsume(t *testing.T) {
	pb := New(make([]byte, 16))
	pb.WriteBytes([]byte{1, 2, 3, 4})
	require.True(t, pb.WriteFinalize())

	got := pb.Peek(2)
	assert.Equal(t, []byte{1, 2}, got)
	assert.Equal(t, uint32(4), pb.BytesReady())
}

func TestClearEmptiesBothQueues(t *testing.T) {
	pb := NewPacketMode(make([]byte, 16), make([]uint32, 4))
	pb.WriteBytes([]byte{1, 2})
	require.True(t, pb.WriteFinalize())
	pb.WriteBytes([]byte{3})

	pb.Clear()
	assert.Equal(t, uint32(0), pb.BytesReady())
	assert.Equal(t, uint32(16), pb.Space())
}

func TestListenerFiresOnNewRecord(t *testing.T) {
	pb := New(make([]byte, 16))
	notified := 0
	pb.SetListener(listenerFunc(func() { notified++ }))

	pb.WriteBytes([]byte{1})
	require.True(t, pb.WriteFinalize())
	assert.Equal(t, 1, notified)

	// Still non-empty after this finalize, so no second notification.
	pb.WriteBytes([]byte{2})
	require.True(t, pb.WriteFinalize())
	assert.Equal(t, 1, notified)
}

type listenerFunc func()

func (f listenerFunc) DataRcvd() { f() }

func TestUnderflowIsStickyUntilFinalize(t *testing.T) {
	pb := New(make([]byte, 4))
	pb.ReadU8()
	assert.True(t, pb.Underflow())
	pb.ReadFinalize()
	assert.False(t, pb.Underflow())
}

func TestRingWrapsAcrossCapacity(t *testing.T) {
	pb := New(make([]byte, 4))
	pb.WriteBytes([]byte{1, 2, 3})
	require.True(t, pb.WriteFinalize())
	var tmp [2]byte
	pb.ReadBytes(tmp[:])
	pb.ReadFinalize()

	// Only byte '3' remains; space should include the 2 bytes freed at
	// the front even though physically they're before start in the ring.
	pb.WriteBytes([]byte{4, 5})
	require.True(t, pb.WriteFinalize())

	var out [3]byte
	require.True(t, pb.ReadBytes(out[:]))
	assert.Equal(t, []byte{3, 4, 5}, out[:])
}
