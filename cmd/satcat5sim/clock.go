package main

import "time"

// wallClock adapts time.Now to sched.TimeRef. The corpus has no existing
// TimeRef implementation to ground this on (every current user is a test
// fake); time.Now is the only part of the simulation loop with no
// third-party alternative, so it's used directly rather than invented.
type wallClock struct{ start time.Time }

func newWallClock() *wallClock { return &wallClock{start: time.Now()} }

func (c *wallClock) Ticks() uint64 { return uint64(time.Since(c.start).Microseconds()) }

func (c *wallClock) TicksPerSecond() uint64 { return 1_000_000 }
