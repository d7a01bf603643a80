package sched

// TimeRef is the monotonic clock collaborator the scheduler depends on. It
// never appears in the spec's exclusion list: unlike PTP/NTP disciplining
// math, a bare tick counter is table stakes for the timer registry itself.
type TimeRef interface {
	// Ticks returns a free-running counter that wraps at the width of its
	// own counter; callers must diff with unsigned subtraction.
	Ticks() uint64
	// TicksPerSecond is the counter's fixed rate.
	TicksPerSecond() uint64
}

// TimeVal captures a reference point on a TimeRef and measures elapsed
// time from it using wraparound-safe unsigned subtraction.
type TimeVal struct {
	ref  TimeRef
	mark uint64
}

// Capture records the current tick of ref.
func Capture(ref TimeRef) TimeVal {
	return TimeVal{ref: ref, mark: ref.Ticks()}
}

// ElapsedUS returns the microseconds elapsed since Capture, wraparound-safe
// because unsigned subtraction of two tick counts is correct modulo 2^64
// regardless of which one wrapped.
func (t TimeVal) ElapsedUS() uint64 {
	diff := t.ref.Ticks() - t.mark
	return diff * 1_000_000 / t.ref.TicksPerSecond()
}

// ElapsedMS is ElapsedUS truncated to whole milliseconds.
func (t TimeVal) ElapsedMS() uint64 {
	return t.ElapsedUS() / 1000
}

// Reset re-captures the mark from the same TimeRef, returning the elapsed
// time since the previous mark.
func (t *TimeVal) Reset() uint64 {
	elapsed := t.ElapsedMS()
	t.mark = t.ref.Ticks()
	return elapsed
}
