package main

import (
	"fmt"
	stdnet "net"

	satnet "github.com/satcat5-go/satcat5/pkg/net"
)

func parseMAC(s string) (satnet.MAC, error) {
	var mac satnet.MAC
	hw, err := stdnet.ParseMAC(s)
	if err != nil {
		return mac, fmt.Errorf("invalid mac %q: %w", s, err)
	}
	if len(hw) != len(mac) {
		return mac, fmt.Errorf("invalid mac %q: want 6 bytes, got %d", s, len(hw))
	}
	copy(mac[:], hw)
	return mac, nil
}

func parseIPv4(s string) (satnet.IPv4, error) {
	var ip satnet.IPv4
	parsed := stdnet.ParseIP(s)
	if parsed == nil {
		return ip, fmt.Errorf("invalid ip %q", s)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return ip, fmt.Errorf("invalid ipv4 %q", s)
	}
	copy(ip[:], v4)
	return ip, nil
}
