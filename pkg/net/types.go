// Package net implements the networking dispatch and address resolution
// core: Ethernet/IPv4/ARP/UDP/ICMP framing and demultiplexing, the
// longest-prefix-match route table with its ARP-driven MAC cache, and the
// per-destination Address object that turns a route into a concrete
// egress Writeable (spec §4.5, §4.6).
package net

import "fmt"

// MAC is a 48-bit Ethernet hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsBroadcast reports whether m is the all-ones broadcast address.
func (m MAC) IsBroadcast() bool { return m == MACBroadcast }

// IsMulticast reports whether m carries the Ethernet multicast bit.
func (m MAC) IsMulticast() bool { return m[0]&0x01 != 0 }

// IsZero reports whether m is the all-zeroes address (the "unset" value).
func (m MAC) IsZero() bool { return m == MAC{} }

// MACBroadcast is the all-ones Ethernet broadcast address.
var MACBroadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IPv4 is an IPv4 address in network byte order.
type IPv4 [4]byte

func (a IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// IsZero reports whether a is 0.0.0.0.
func (a IPv4) IsZero() bool { return a == IPv4{} }

// IsMulticast reports whether a falls in 224.0.0.0/4.
func (a IPv4) IsMulticast() bool { return a[0]&0xf0 == 0xe0 }

// AsUint32 returns a's big-endian bit pattern as a uint32, convenient for
// subnet-mask arithmetic.
func (a IPv4) AsUint32() uint32 {
	return uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
}

// IPv4FromUint32 is the inverse of AsUint32.
func IPv4FromUint32(v uint32) IPv4 {
	return IPv4{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// Mask is a dotted subnet mask, stored the same way as an address so the
// two can share AsUint32/IPv4FromUint32 arithmetic.
type Mask = IPv4

// Contains reports whether ip falls within the subnet base/mask.
func Contains(base IPv4, mask Mask, ip IPv4) bool {
	m := mask.AsUint32()
	return base.AsUint32()&m == ip.AsUint32()&m
}

// PrefixLen returns the number of leading one-bits in mask, the usual
// "longest prefix" sort key for route lookups.
func PrefixLen(mask Mask) int {
	v := mask.AsUint32()
	n := 0
	for i := 31; i >= 0; i-- {
		if v&(1<<uint(i)) == 0 {
			break
		}
		n++
	}
	return n
}

// ADDRBroadcast, used as a Route gateway, means "this subnet is local —
// send directly to the destination's own MAC" (spec §3).
var ADDRBroadcast = IPv4{255, 255, 255, 255}

// ADDRNone, used as a Route gateway, means "unreachable" (spec §3).
var ADDRNone = IPv4{0, 0, 0, 0}

// EtherType is the 16-bit Ethernet payload discriminator.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeVLAN EtherType = 0x8100
)

// IPProtocol is the IPv4 header's 8-bit protocol field.
type IPProtocol uint8

const (
	IPProtoICMP IPProtocol = 1
	IPProtoTCP  IPProtocol = 6
	IPProtoUDP  IPProtocol = 17
)

// VID is an 802.1Q VLAN identifier; 0 means "untagged / matches any" per
// spec §4.5 ("an unset VID matches any").
type VID uint16
