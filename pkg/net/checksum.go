package net

import "gvisor.dev/gvisor/pkg/tcpip/header"

// IPv4 header and UDP/TCP pseudo-header checksums reuse gvisor's
// one's-complement checksum primitives (header.Checksum,
// header.ChecksumCombine) rather than a hand-rolled implementation — spec
// §4.5/§6 name RFC 791 and RFC 1624 §3 by the book, and those two
// functions are exactly "the one's-complement sum of 16-bit words" and
// "combine two partial sums", respectively.

// IPv4HeaderChecksum computes the RFC 791 header checksum over hdr, a
// 20-plus-options byte IPv4 header with its checksum field still zeroed.
func IPv4HeaderChecksum(hdr []byte) uint16 {
	return ^header.Checksum(hdr, 0)
}

// IPv4ChecksumIncremental updates an existing header checksum after a
// single 16-bit header word changed from old to new, per RFC 1624 §3:
// HC' = ~(~HC + ~m + m'). Both old and new must be the full 16-bit field
// value, not bitwise-inverted.
func IPv4ChecksumIncremental(oldChecksum, old, new uint16) uint16 {
	return ^header.ChecksumCombine(^oldChecksum, header.ChecksumCombine(^old, new))
}

// PseudoHeaderChecksum computes the IPv4 pseudo-header partial sum used by
// UDP and TCP: source address, destination address, zero byte, protocol,
// and transport length, per RFC 768 / RFC 793.
func PseudoHeaderChecksum(proto IPProtocol, src, dst IPv4, transportLen uint16) uint16 {
	var buf [12]byte
	copy(buf[0:4], src[:])
	copy(buf[4:8], dst[:])
	buf[8] = 0
	buf[9] = byte(proto)
	buf[10] = byte(transportLen >> 8)
	buf[11] = byte(transportLen)
	return header.Checksum(buf[:], 0)
}

// TransportChecksum folds the pseudo-header sum together with the
// checksum of the transport segment itself (header + payload, checksum
// field zeroed) and returns the final one's-complement checksum to store
// in the wire header. A zero result is replaced with all-ones for UDP,
// where zero means "no checksum computed" on the wire.
func TransportChecksum(pseudo uint16, segment []byte, udp bool) uint16 {
	sum := ^header.ChecksumCombine(pseudo, header.Checksum(segment, 0))
	if udp && sum == 0 {
		return 0xffff
	}
	return sum
}
