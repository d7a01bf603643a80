package net

import (
	"github.com/satcat5-go/satcat5/pkg/sched"
	"github.com/satcat5-go/satcat5/pkg/stream"
	"github.com/satcat5-go/satcat5/pkg/telemetry"
)

const (
	arpHTypeEthernet = 1
	arpOperRequest   = 1
	arpOperReply     = 2
	arpFrameLen      = 28 // htype+ptype+hlen+plen+oper+sha+spa+tha+tpa
)

// ArpBackoffBaseMS and ArpBackoffCapMS bound the exponential retry backoff
// named in spec §4.6/§5 ("ARP retries with exponential backoff up to a
// fixed cap").
const (
	ArpBackoffBaseMS = 250
	ArpBackoffCapMS  = 8000
	ArpMaxAttempts   = 6
)

// ARPListener is notified when the resolver learns a mapping.
type ARPListener interface {
	ARPResolved(ip IPv4, mac MAC)
}

type arpPending struct {
	ip       IPv4
	attempts int
	timer    *sched.TimerHandle
}

// Resolver drives ARP request/reply over an Ethernet egress and feeds
// learned mappings into a RouteTable's cache plus any registered
// listeners (spec §4.6).
type Resolver struct {
	sched   *sched.Scheduler
	eth     *EthernetDispatch
	routes  *RouteTable
	selfMAC MAC
	selfIP  IPv4

	pending map[IPv4]*arpPending
	listeners []ARPListener

	emitter *telemetry.Emitter
	iface   string
}

// NewResolver creates a Resolver that sends/receives ARP frames through
// eth and registers itself as the handler for EtherTypeARP.
func NewResolver(s *sched.Scheduler, eth *EthernetDispatch, routes *RouteTable, selfMAC MAC, selfIP IPv4) *Resolver {
	r := &Resolver{
		sched:   s,
		eth:     eth,
		routes:  routes,
		selfMAC: selfMAC,
		selfIP:  selfIP,
		pending: make(map[IPv4]*arpPending),
	}
	_ = eth.RegisterProtocol(EthernetType{EtherType: EtherTypeARP}, r)
	return r
}

// SetEmitter attaches telemetry; both may be nil.
func (r *Resolver) SetEmitter(e *telemetry.Emitter, iface string) {
	r.emitter, r.iface = e, iface
}

// AddListener registers l for ARPResolved notifications.
func (r *Resolver) AddListener(l ARPListener) {
	r.listeners = append(r.listeners, l)
}

// Request begins (or continues) resolving ip, sending an ARP request
// immediately and arming the exponential-backoff retry timer. A second
// Request for an IP already pending is a no-op; the existing retry cycle
// continues.
func (r *Resolver) Request(ip IPv4) {
	if _, ok := r.pending[ip]; ok {
		return
	}
	p := &arpPending{ip: ip}
	r.pending[ip] = p
	r.sendRequest(p)
}

func (r *Resolver) backoffMS(attempts int) uint32 {
	ms := uint32(ArpBackoffBaseMS)
	for i := 0; i < attempts && ms < ArpBackoffCapMS; i++ {
		ms *= 2
	}
	if ms > ArpBackoffCapMS {
		ms = ArpBackoffCapMS
	}
	return ms
}

func (r *Resolver) sendRequest(p *arpPending) {
	p.attempts++
	if p.attempts > ArpMaxAttempts {
		delete(r.pending, p.ip)
		if r.emitter != nil {
			_ = r.emitter.Emit(telemetry.EventARPTimeout, "ARP resolution exhausted", r.iface, nil,
				telemetry.ARPData{IP: p.ip.String(), Attempts: p.attempts - 1})
		}
		return
	}

	w := r.eth.OpenWrite(MACBroadcast, 0, EtherTypeARP, arpFrameLen)
	if w != nil {
		writeARP(w, arpOperRequest, r.selfMAC, r.selfIP, MAC{}, p.ip)
		w.WriteFinalize()
	}
	if r.pending[p.ip] != p {
		return // a reply was learned while the request was being sent
	}

	delay := r.backoffMS(p.attempts - 1)
	if p.timer == nil {
		p.timer = r.sched.RegisterTimer(delay, 0, func() { r.sendRequest(p) })
	} else {
		p.timer.Reset(delay)
	}
}

// writeARP encodes an ARP frame (request or reply) to w.
func writeARP(w stream.Writeable, oper uint16, sha MAC, spa IPv4, tha MAC, tpa IPv4) {
	stream.WriteU16(w, arpHTypeEthernet)
	stream.WriteU16(w, uint16(EtherTypeIPv4))
	w.WriteU8(6)
	w.WriteU8(4)
	stream.WriteU16(w, oper)
	w.WriteBytes(sha[:])
	w.WriteBytes(spa[:])
	w.WriteBytes(tha[:])
	w.WriteBytes(tpa[:])
}

// HandleRx implements Protocol: it is invoked by the Ethernet Dispatch
// with a LimitedRead over an inbound ARP frame's payload.
func (r *Resolver) HandleRx(r2 stream.Readable, srcMAC MAC) {
	if r2.BytesReady() < arpFrameLen {
		r2.ReadFinalize()
		return
	}
	htype := stream.ReadU16(r2)
	ptype := stream.ReadU16(r2)
	hlen := r2.ReadU8()
	plen := r2.ReadU8()
	oper := stream.ReadU16(r2)
	var sha MAC
	r2.ReadBytes(sha[:])
	var spa IPv4
	r2.ReadBytes(spa[:])
	var tha MAC
	r2.ReadBytes(tha[:])
	var tpa IPv4
	r2.ReadBytes(tpa[:])
	r2.ReadFinalize()

	if htype != arpHTypeEthernet || ptype != uint16(EtherTypeIPv4) || hlen != 6 || plen != 4 {
		return
	}

	r.learn(spa, sha)

	if oper == arpOperRequest && tpa == r.selfIP {
		w := r.eth.OpenWrite(sha, 0, EtherTypeARP, arpFrameLen)
		if w != nil {
			writeARP(w, arpOperReply, r.selfMAC, r.selfIP, sha, spa)
			w.WriteFinalize()
		}
	}
}

// learn records ip -> mac in the route cache, clears any pending retry
// for ip, and notifies every listener.
func (r *Resolver) learn(ip IPv4, mac MAC) {
	if ip.IsZero() || mac.IsZero() {
		return
	}
	if p, ok := r.pending[ip]; ok {
		if p.timer != nil {
			_ = p.timer.Close()
		}
		delete(r.pending, ip)
	}
	r.routes.Cache(ip, mac)
	for _, l := range r.listeners {
		l.ARPResolved(ip, mac)
	}
	if r.emitter != nil {
		_ = r.emitter.Emit(telemetry.EventARPResolved, "ARP resolved", r.iface, nil,
			telemetry.ARPData{IP: ip.String(), MAC: mac.String()})
	}
}

// Simulate injects a resolved mapping as if an ARP reply had arrived —
// used by tests and by callers bridging a non-Ethernet transport's own
// address-resolution mechanism into this resolver.
func (r *Resolver) Simulate(ip IPv4, mac MAC) { r.learn(ip, mac) }
