//go:build linux

package hwport

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePort builds a TAPPort over a unix.Pipe() fd pair instead of a real
// TAP device, exercising the same non-blocking read/write syscalls
// without needing root or a kernel TUN/TAP driver in the test sandbox.
func pipePort(t *testing.T) (*TAPPort, int) {
	t.Helper()
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return newPort(fds[1], "test0", 1500), fds[0]
}

func TestTAPPortWriteFinalizeIssuesOneWrite(t *testing.T) {
	port, readFd := pipePort(t)

	frame := []byte("an ethernet frame")
	port.WriteBytes(frame)
	require.True(t, port.WriteFinalize())

	got := make([]byte, len(frame))
	n, err := unix.Read(readFd, got)
	require.NoError(t, err)
	assert.Equal(t, frame, got[:n])
}

func TestTAPPortWriteOverflowAbortsFrame(t *testing.T) {
	port, _ := pipePort(t)
	port.mtu = 4
	port.txBuf = make([]byte, 4)

	port.WriteBytes([]byte{1, 2, 3, 4, 5})
	assert.True(t, port.Overflow())
	assert.False(t, port.WriteFinalize())
	assert.False(t, port.Overflow(), "WriteFinalize clears overflow via WriteAbort")
}

func TestTAPPortPollAppendsReceivedFrameToRx(t *testing.T) {
	port, readFd := pipePort(t)
	_ = readFd

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	t.Cleanup(func() { unix.Close(fds[0]); unix.Close(fds[1]) })
	require.NoError(t, unix.SetNonblock(fds[0], true))

	port.fd = fds[0]
	frame := []byte("inbound frame payload")
	_, err := unix.Write(fds[1], frame)
	require.NoError(t, err)

	port.Poll()

	require.EqualValues(t, len(frame), port.rx.BytesReady())
	got := make([]byte, len(frame))
	port.rx.ReadBytes(got)
	assert.Equal(t, frame, got)
}

func TestTAPPortPollStopsAtEAGAIN(t *testing.T) {
	port, _ := pipePort(t)
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	t.Cleanup(func() { unix.Close(fds[0]); unix.Close(fds[1]) })
	require.NoError(t, unix.SetNonblock(fds[0], true))
	port.fd = fds[0]

	port.Poll() // nothing written yet; must return without blocking
	assert.EqualValues(t, 0, port.rx.BytesReady())
}
