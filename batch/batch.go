// Package batch coalesces rapid text deltas into at most one update per
// scheduling tick.
package batch

import (
	"strings"
	"sync"
	"time"
)

// FrameInterval approximates one display refresh at 60 Hz.
const FrameInterval = 16 * time.Millisecond

// Scheduler runs fn at the next available opportunity. The returned stop
// function prevents fn from running if it has not started and reports
// whether it did so.
type Scheduler interface {
	Schedule(fn func()) (stop func() bool)
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func()) (stop func() bool)

func (f SchedulerFunc) Schedule(fn func()) func() bool { return f(fn) }

// Interval returns a Scheduler that runs fn after d on its own goroutine.
func Interval(d time.Duration) Scheduler {
	return SchedulerFunc(func(fn func()) func() bool {
		return time.AfterFunc(d, fn).Stop
	})
}

// Immediate runs fn synchronously inside Schedule, which disables
// coalescing. It suits tests and non-interactive output.
var Immediate Scheduler = SchedulerFunc(func(fn func()) func() bool {
	fn()
	return func() bool { return false }
})

// Batcher accumulates pending text and hands it to flush in arrival order.
// It is safe for concurrent use; flush is never called with the lock held.
type Batcher struct {
	sched Scheduler
	flush func(string)

	mu      sync.Mutex
	pending strings.Builder
	stop    func() bool
	gen     uint64 // bumped by Reset; a scheduled flush from an older gen is inert
	flushMu sync.Mutex
}

// New returns a Batcher that delivers coalesced text to flush.
func New(sched Scheduler, flush func(string)) *Batcher {
	return &Batcher{sched: sched, flush: flush}
}

// Add appends text to the pending buffer and schedules a flush if none is
// pending.
func (b *Batcher) Add(text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	b.pending.WriteString(text)
	if b.stop != nil {
		b.mu.Unlock()
		return
	}
	gen := b.gen
	b.stop = func() bool { return false }
	b.mu.Unlock()

	stop := b.sched.Schedule(func() { b.scheduledFlush(gen) })

	b.mu.Lock()
	// The callback may already have run (Immediate) or a Reset may have
	// intervened; only record stop for a still-pending flush of this gen.
	if b.gen == gen && b.stop != nil {
		b.stop = stop
	}
	b.mu.Unlock()
}

func (b *Batcher) scheduledFlush(gen uint64) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	text := b.take()
	b.mu.Unlock()
	if text != "" {
		b.flush(text)
	}
}

// Flush applies pending text immediately and cancels the scheduled flush.
func (b *Batcher) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	b.mu.Lock()
	if b.stop != nil {
		b.stop()
	}
	text := b.take()
	b.mu.Unlock()
	if text != "" {
		b.flush(text)
	}
}

// Reset discards pending text and cancels the scheduled flush without
// applying it.
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		b.stop()
	}
	b.gen++
	b.stop = nil
	b.pending.Reset()
}

// Pending returns the text not yet flushed.
func (b *Batcher) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.String()
}

// take clears the pending buffer and the scheduled marker. b.mu must be held.
func (b *Batcher) take() string {
	text := b.pending.String()
	b.pending.Reset()
	b.stop = nil
	return text
}
