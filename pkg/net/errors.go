package net

import "errors"

var (
	ErrRouteTableFull    = errors.New("net: route table full")
	ErrNoRoute           = errors.New("net: no route to destination")
	ErrDuplicateProtocol = errors.New("net: protocol already registered for this type")
	ErrNotReady          = errors.New("net: address not ready (ARP pending)")
	ErrMalformedFrame    = errors.New("net: malformed frame")
)
