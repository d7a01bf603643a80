//go:build linux

// Package hwport provides the concrete hardware-port collaborator the
// core stack only ever sees as a stream.Readable/stream.Writeable pair:
// a Linux TAP device, opened and ioctl-configured the way the teacher's
// own guest-init configures its network interface (golang.org/x/sys/unix,
// unix.NewIfreq/IoctlIfreq), read non-blockingly from an Always-polled
// Scheduler slot rather than a dedicated goroutine, to keep the whole
// stack single-threaded (spec §5).
package hwport

import (
	"golang.org/x/sys/unix"

	"github.com/satcat5-go/satcat5/internal/errx"
	"github.com/satcat5-go/satcat5/pkg/config"
	"github.com/satcat5-go/satcat5/pkg/packetbuf"
	"github.com/satcat5-go/satcat5/pkg/stream"
	"github.com/satcat5-go/satcat5/pkg/telemetry"
)

const tapDevicePath = "/dev/net/tun"

// TAPPort is a Linux TAP device driven as a hardware port: an inbound
// PacketBuffer fed by non-blocking reads, and a direct Writeable whose
// WriteFinalize issues one write(2) syscall per frame.
type TAPPort struct {
	fd   int
	name string
	mtu  int

	rx     *packetbuf.PacketBuffer
	rxScratch []byte

	txBuf      []byte
	txPos      int
	txOverflow bool

	emitter *telemetry.Emitter
	iface   string
}

// Open creates name (if it doesn't already exist) as a TAP device and
// configures it for non-blocking I/O. mtu bounds both the largest frame
// Poll will read and the largest frame the Writeable side will accept.
func Open(name string, mtu int) (*TAPPort, error) {
	fd, err := unix.Open(tapDevicePath, unix.O_RDWR, 0)
	if err != nil {
		return nil, errx.With(ErrOpenTAP, " %s: %w", name, err)
	}

	ifreq, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, errx.With(ErrConfigureTAP, " ifreq %s: %w", name, err)
	}
	ifreq.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)
	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifreq); err != nil {
		unix.Close(fd)
		return nil, errx.With(ErrConfigureTAP, " TUNSETIFF %s: %w", name, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errx.With(ErrSetNonblock, " %s: %w", name, err)
	}

	return newPort(fd, name, mtu), nil
}

// newPort builds the port state around an already-opened, already
// non-blocking fd — split out so tests can drive the Writeable/Poll
// logic over a unix.Pipe() fd pair without a real TAP device.
func newPort(fd int, name string, mtu int) *TAPPort {
	limits := config.Default()
	return &TAPPort{
		fd:        fd,
		name:      name,
		mtu:       mtu,
		rx:        packetbuf.NewPacketMode(make([]byte, limits.MaxPacketBytes*limits.RXPKT), make([]uint32, limits.RXPKT)),
		rxScratch: make([]byte, mtu),
		txBuf:     make([]byte, mtu),
	}
}

// SetEmitter attaches telemetry; both may be nil.
func (p *TAPPort) SetEmitter(e *telemetry.Emitter, iface string) { p.emitter, p.iface = e, iface }

// Rx is the hardware port's Readable side, fed by Poll.
func (p *TAPPort) Rx() stream.Readable { return p.rx }

// Name returns the device name passed to Open.
func (p *TAPPort) Name() string { return p.name }

// Close releases the underlying file descriptor.
func (p *TAPPort) Close() error { return unix.Close(p.fd) }

// Poll drains every frame currently queued on the fd without blocking,
// appending each to the inbound PacketBuffer. Register as an Always
// handler: Always handlers must never block (spec §5), and a
// non-blocking fd read that stops at EAGAIN satisfies that directly.
func (p *TAPPort) Poll() {
	for {
		n, err := unix.Read(p.fd, p.rxScratch)
		if err != nil {
			if err != unix.EAGAIN {
				p.reportIOError(err)
			}
			return
		}
		if n <= 0 {
			return
		}
		p.rx.WriteBytes(p.rxScratch[:n])
		if !p.rx.WriteFinalize() {
			p.reportIOError(ErrFrameTooLarge)
		}
	}
}

func (p *TAPPort) reportIOError(cause error) {
	if p.emitter == nil {
		return
	}
	_ = p.emitter.Emit(telemetry.EventMalformedFrame, cause.Error(), p.iface, []string{"hwport"}, nil)
}

// --- stream.Writeable: the hardware port's tx side ---

func (p *TAPPort) Space() uint32 {
	if p.txOverflow {
		return 0
	}
	return uint32(len(p.txBuf) - p.txPos)
}

func (p *TAPPort) WriteU8(v uint8) {
	if p.txOverflow || p.txPos >= len(p.txBuf) {
		p.txOverflow = true
		return
	}
	p.txBuf[p.txPos] = v
	p.txPos++
}

func (p *TAPPort) WriteBytes(src []byte) {
	if p.txOverflow {
		return
	}
	if len(src) > len(p.txBuf)-p.txPos {
		p.txOverflow = true
		return
	}
	copy(p.txBuf[p.txPos:], src)
	p.txPos += len(src)
}

func (p *TAPPort) WriteAbort() {
	p.txPos = 0
	p.txOverflow = false
}

func (p *TAPPort) Overflow() bool { return p.txOverflow }

// WriteFinalize issues one write(2) of the accumulated frame. A transient
// EAGAIN (the TAP queue is momentarily full) drops the frame rather than
// blocking the scheduler, matching spec §5's "Tpipe, for example, polls
// at 10 ms until the interface accepts the frame" — retry is the caller's
// job, not this layer's.
func (p *TAPPort) WriteFinalize() bool {
	if p.txOverflow {
		p.WriteAbort()
		return false
	}
	n := p.txPos
	p.txPos = 0
	if n == 0 {
		return true
	}
	_, err := unix.Write(p.fd, p.txBuf[:n])
	if err != nil {
		if err != unix.EAGAIN {
			p.reportIOError(err)
		}
		return false
	}
	return true
}

var _ stream.Writeable = (*TAPPort)(nil)
