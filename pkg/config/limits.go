// Package config collects the compile-time-constant defaults scattered
// across the stack's packages into one documented struct, so there is a
// single place to read them (pkg/hwport sizes its receive buffer from
// it). The core packages never import this package: each one
// defines and uses its own defaults (spec §6, "Persisted state: none" —
// these are documented constants, not runtime configuration the core
// depends on).
package config

import (
	"github.com/satcat5-go/satcat5/pkg/multibuf"
	"github.com/satcat5-go/satcat5/pkg/net"
	"github.com/satcat5-go/satcat5/pkg/tpipe"
)

// Limits mirrors the fixed maxima spec.md documents throughout: chunk
// size, per-packet byte length, reader/writer queue depth, watchdog
// interval, Tpipe window and timing, and ARP backoff.
type Limits struct {
	ChunkPayloadBytes int
	MaxPacketBytes    int
	RXPKT             int
	WatchdogMS        int

	TpipeWindowBytes      int
	RetransmitIntervalMS  int
	TimeoutLimitMS        int

	ArpBackoffBaseMS int
	ArpBackoffCapMS  int
	ArpMaxAttempts   int
}

// Default returns the defaults named throughout spec.md, each sourced
// from the package that actually enforces it rather than re-declared
// here.
func Default() Limits {
	return Limits{
		ChunkPayloadBytes: multibuf.DefaultChunkPayload,
		MaxPacketBytes:    multibuf.DefaultMaxPacketBytes,
		RXPKT:             multibuf.DefaultRXPKT,
		WatchdogMS:        multibuf.DefaultWatchdogMS,

		TpipeWindowBytes:     tpipe.MaxPayload,
		RetransmitIntervalMS: tpipe.DefaultRetransmitIntervalMS,
		TimeoutLimitMS:       tpipe.DefaultTimeoutLimitMS,

		ArpBackoffBaseMS: net.ArpBackoffBaseMS,
		ArpBackoffCapMS:  net.ArpBackoffCapMS,
		ArpMaxAttempts:   net.ArpMaxAttempts,
	}
}
