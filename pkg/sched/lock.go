package sched

import "sync"

// AtomicLock guards every registry mutation in this package. On bare metal
// the equivalent bracket disables interrupts; hosted here it is a short
// mutex. Callers must never hold it across a user callback — Scheduler
// always unlocks before invoking a registered handler.
type AtomicLock struct {
	mu sync.Mutex
}

func (l *AtomicLock) Lock()   { l.mu.Lock() }
func (l *AtomicLock) Unlock() { l.mu.Unlock() }
