// Package debounce provides a cancelable, re-armable delayed action.
//
// A Debouncer collapses a burst of Trigger calls into one call of its function,
// fired once the burst has been quiet for the configured delay (trailing edge;
// the leading edge is ignored).
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once per burst of Trigger calls.
// It is safe for concurrent use. fn runs on its own goroutine and never
// concurrently with itself for triggers from the same burst.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64 // bumped on every arm/cancel so stale timers become no-ops
	stopped bool
}

// New returns a Debouncer that calls fn after delay of quiet.
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re-)arms the timer. Any previously scheduled but not yet fired
// call is replaced. It is a no-op after Stop.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Cancel drops a pending call, if any. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Debouncer) cancelLocked() bool {
	d.gen++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Flush cancels a pending call and runs fn immediately on the caller's
// goroutine instead. It reports whether a call was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	pending := !d.stopped && d.cancelLocked()
	d.mu.Unlock()
	if pending {
		d.fn()
	}
	return pending
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending call and disables the Debouncer permanently.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}
