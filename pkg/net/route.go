package net

import "github.com/satcat5-go/satcat5/pkg/telemetry"

// RouteFlags mark per-row behavior (spec §3).
type RouteFlags uint8

const (
	// RouteFlagFixedMAC marks a row whose MAC was set explicitly and is
	// therefore ineligible for cache overwrite (spec §3).
	RouteFlagFixedMAC RouteFlags = 1 << iota
)

// Route is one row of the routing table: a subnet, its gateway, an
// optional cached MAC, the egress port, and flags (spec §3).
type Route struct {
	Subnet  IPv4
	Mask    Mask
	Gateway IPv4
	MAC     MAC
	Port    uint8
	Flags   RouteFlags
}

func (r *Route) fixedMAC() bool { return r.Flags&RouteFlagFixedMAC != 0 }

// contains reports whether dst falls within r's subnet.
func (r *Route) contains(dst IPv4) bool { return Contains(r.Subnet, r.Mask, dst) }

// RouteTable holds a default route plus up to N static rows (written from
// the front) and ephemeral cache rows (written from the back), per spec
// §3/§4.6. It is modelled as a single fixed slice with two cursors rather
// than the source's split arrays, which keeps "static_count +
// ephemeral_count <= N" a single invariant to maintain.
type RouteTable struct {
	rows    []Route
	staticN int // rows[0:staticN] are static
	ephN    int // rows[len(rows)-ephN:] are ephemeral

	def Route

	emitter  *telemetry.Emitter
	iface    string
	listeners []GatewayListener
}

// GatewayListener is notified when ICMP learning changes the gateway for
// a destination the listener cares about (spec §4.6:
// "Listeners also receive gateway_change notifications via the route
// table").
type GatewayListener interface {
	GatewayChange(dst, newGateway IPv4)
}

// NewRouteTable creates a table with room for capacity static+ephemeral
// rows beyond the default route.
func NewRouteTable(capacity int, def Route) *RouteTable {
	return &RouteTable{rows: make([]Route, capacity), def: def}
}

// SetEmitter attaches telemetry; both may be nil.
func (t *RouteTable) SetEmitter(e *telemetry.Emitter, iface string) {
	t.emitter, t.iface = e, iface
}

// AddGatewayListener registers l to receive GatewayChange notifications.
func (t *RouteTable) AddGatewayListener(l GatewayListener) {
	t.listeners = append(t.listeners, l)
}

func (t *RouteTable) notifyGatewayChange(dst, newGW IPv4) {
	for _, l := range t.listeners {
		l.GatewayChange(dst, newGW)
	}
	if t.emitter != nil {
		_ = t.emitter.Emit(telemetry.EventGatewayChange, "route gateway changed", t.iface, nil,
			telemetry.GatewayChangeData{NewGateway: newGW.String(), Reason: "icmp_redirect"})
	}
}

// Lookup scans every row (static and ephemeral) for subnets containing
// dst and returns the one with the numerically largest mask — the
// longest-prefix match (spec §4.6, testable property 6/7). Local routes
// (gateway == ADDRBroadcast) have their gateway rewritten to dst itself
// before returning, so the caller never needs to special-case "local".
// If no row contains dst, the default route is returned.
func (t *RouteTable) Lookup(dst IPv4) Route {
	best := t.def
	bestLen := -1
	if Contains(t.def.Subnet, t.def.Mask, dst) {
		bestLen = PrefixLen(t.def.Mask)
	}

	for i := 0; i < t.staticN; i++ {
		if r := &t.rows[i]; r.contains(dst) {
			if l := PrefixLen(r.Mask); l > bestLen {
				best, bestLen = *r, l
			}
		}
	}
	for i := len(t.rows) - t.ephN; i < len(t.rows); i++ {
		if r := &t.rows[i]; r.contains(dst) {
			if l := PrefixLen(r.Mask); l > bestLen {
				best, bestLen = *r, l
			}
		}
	}

	if best.Gateway == ADDRBroadcast {
		best.Gateway = dst
	}
	return best
}

// AddStatic inserts or replaces a static route. A row whose subnet
// exactly matches an existing static row is replaced in place; otherwise
// the row is appended at the static cursor. Fails with ErrRouteTableFull
// if the table (static + ephemeral) is already full.
func (t *RouteTable) AddStatic(r Route) error {
	for i := 0; i < t.staticN; i++ {
		if t.rows[i].Subnet == r.Subnet && t.rows[i].Mask == r.Mask {
			t.rows[i] = r
			t.emitRouteChange(r, "replaced")
			return nil
		}
	}
	if t.staticN+t.ephN >= len(t.rows) {
		return ErrRouteTableFull
	}
	t.rows[t.staticN] = r
	t.staticN++
	t.emitRouteChange(r, "added")
	return nil
}

func (t *RouteTable) emitRouteChange(r Route, action string) {
	if t.emitter == nil {
		return
	}
	_ = t.emitter.Emit(telemetry.EventRouteChange, "route table updated", t.iface, nil,
		telemetry.RouteChangeData{Dest: r.Subnet.String(), Prefix: PrefixLen(r.Mask), Gateway: r.Gateway.String(), Action: action})
}

// Cache updates the table's MAC cache for gateway, per spec §4.6
// ("route_cache"). Non-unicast gateways are rejected outright. Every
// existing row whose gateway matches gateway and is not user-fixed has
// its MAC overwritten. If no such row's subnet already contains gateway
// itself, an ephemeral host route is appended at the back-growing
// cursor (evicting the oldest ephemeral row if the table is full); its
// port and non-MAC flags are copied from the best-matching existing
// route for gateway.
func (t *RouteTable) Cache(gateway IPv4, mac MAC) {
	if gateway.IsMulticast() || mac.IsMulticast() || mac.IsBroadcast() {
		return
	}

	matched := false
	for i := 0; i < t.staticN; i++ {
		r := &t.rows[i]
		if r.Gateway == gateway {
			if !r.fixedMAC() {
				r.MAC = mac
			}
			if r.contains(gateway) {
				matched = true
			}
		}
	}
	for i := len(t.rows) - t.ephN; i < len(t.rows); i++ {
		r := &t.rows[i]
		if r.Gateway == gateway {
			if !r.fixedMAC() {
				r.MAC = mac
			}
			if r.contains(gateway) {
				matched = true
			}
		}
	}
	if matched {
		return
	}

	best := t.Lookup(gateway)
	row := Route{
		Subnet: gateway,
		Mask:   IPv4{255, 255, 255, 255},
		MAC:    mac,
		Port:   best.Port,
		Flags:  best.Flags &^ RouteFlagFixedMAC,
		Gateway: ADDRBroadcast,
	}
	t.appendEphemeral(row)
}

// appendEphemeral pushes row onto the back-growing ephemeral region,
// evicting the oldest ephemeral row first if the table has no free slot.
func (t *RouteTable) appendEphemeral(row Route) {
	if t.staticN+t.ephN < len(t.rows) {
		t.ephN++
		t.rows[len(t.rows)-t.ephN] = row
		return
	}
	if t.ephN == 0 {
		return // table has no room even for static rows; nothing to evict
	}
	// Ephemeral rows are written back-to-front: the first row cached
	// lands at the highest index and each subsequent row at a lower one.
	// So the oldest row is the one at the highest index; evict it by
	// shifting every remaining ephemeral row up by one slot and writing
	// the new row at the (unchanged) front cursor.
	start := len(t.rows) - t.ephN
	copy(t.rows[start+1:], t.rows[start:len(t.rows)-1])
	t.rows[start] = row
}

// Flush drops every ephemeral row. Static rows keep their subnet and
// gateway but have their MAC cleared unless marked user-fixed (spec §4.6).
func (t *RouteTable) Flush() {
	t.ephN = 0
	for i := 0; i < t.staticN; i++ {
		if !t.rows[i].fixedMAC() {
			t.rows[i].MAC = MAC{}
		}
	}
}

// GatewayChange handles an ICMP redirect by notifying listeners that dst
// is now reached via newGateway (spec §4.6). The table's rows are not
// changed: a later Lookup of dst returns the same route as before.
func (t *RouteTable) GatewayChange(dst, newGateway IPv4) {
	t.notifyGatewayChange(dst, newGateway)
}

// CachedMAC returns the best-matching route's cached MAC for ip, if any.
// ICMP reply/redirect handling uses this to address an outbound frame
// without re-running ARP when a mapping is already known.
func (t *RouteTable) CachedMAC(ip IPv4) (MAC, bool) {
	r := t.Lookup(ip)
	if r.MAC.IsZero() {
		return MAC{}, false
	}
	return r.MAC, true
}

// StaticCount and EphemeralCount expose the invariant
// "static_count + ephemeral_count <= N" for tests.
func (t *RouteTable) StaticCount() int    { return t.staticN }
func (t *RouteTable) EphemeralCount() int { return t.ephN }
func (t *RouteTable) Capacity() int       { return len(t.rows) }
