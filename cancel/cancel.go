// Package cancel composes a manual abort and a timeout into a single
// cancellation source. Whichever fires first wins and is recorded as the
// cause, so callers can tell a user abort from a timeout.
package cancel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fwojciec/chatstream"
)

// DefaultTimeout is used when a Controller has no explicit timeout.
const DefaultTimeout = 30 * time.Second

// Composer combines a manually triggered context with a deadline. It
// returns the composed context and a release function.
type Composer interface {
	Compose(manual context.Context, timeout time.Duration) (context.Context, context.CancelFunc)
}

// ComposerFunc adapts a function to Composer.
type ComposerFunc func(manual context.Context, timeout time.Duration) (context.Context, context.CancelFunc)

func (f ComposerFunc) Compose(manual context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return f(manual, timeout)
}

// Composite races the manual trigger against the deadline. The timeout
// cause is chatstream.ErrTimeout. A non-positive timeout disables the
// deadline.
var Composite Composer = ComposerFunc(func(manual context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(manual)
	}
	return context.WithTimeoutCause(manual, timeout, chatstream.ErrTimeout)
})

// ManualOnly ignores the timeout and keeps only the manual trigger. It is
// the fallback for environments that cannot compose deadlines.
var ManualOnly Composer = ComposerFunc(func(manual context.Context, _ time.Duration) (context.Context, context.CancelFunc) {
	return context.WithCancel(manual)
})

// Handle owns one cancellation source.
type Handle struct {
	ctx     context.Context
	abort   context.CancelCauseFunc
	release context.CancelFunc
	once    sync.Once
}

// Context returns the composed context.
func (h *Handle) Context() context.Context { return h.ctx }

// Abort fires the manual trigger. Calling it more than once is a no-op.
func (h *Handle) Abort() {
	h.once.Do(func() {
		h.abort(chatstream.ErrAborted)
		h.release()
	})
}

// Release frees timer resources without recording an abort. It is safe to
// call after Abort.
func (h *Handle) Release() {
	h.release()
}

// Err classifies why the handle fired: chatstream.ErrAborted,
// chatstream.ErrTimeout, the parent's cause, or nil if it has not fired.
func (h *Handle) Err() error {
	if h.ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(h.ctx)
	switch {
	case errors.Is(cause, chatstream.ErrAborted):
		return chatstream.ErrAborted
	case errors.Is(cause, chatstream.ErrTimeout), errors.Is(cause, context.DeadlineExceeded):
		return chatstream.ErrTimeout
	case errors.Is(cause, context.Canceled):
		return chatstream.ErrAborted
	default:
		return cause
	}
}

// Controller owns at most one outstanding Handle. Starting a new handle
// aborts the previous one. The zero value uses DefaultTimeout and Composite.
type Controller struct {
	// Timeout bounds each handle. Zero means DefaultTimeout; negative
	// disables the deadline.
	Timeout  time.Duration
	Composer Composer

	mu     sync.Mutex
	active *Handle
}

// Start aborts any outstanding handle and returns a new one derived from
// parent.
func (c *Controller) Start(parent context.Context) *Handle {
	manual, abort := context.WithCancelCause(parent)
	composer := c.Composer
	if composer == nil {
		composer = Composite
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, release := composer.Compose(manual, timeout)
	h := &Handle{ctx: ctx, abort: abort, release: release}

	c.mu.Lock()
	prev := c.active
	c.active = h
	c.mu.Unlock()

	if prev != nil {
		prev.Abort()
	}
	return h
}

// Abort aborts the outstanding handle, if any.
func (c *Controller) Abort() {
	c.mu.Lock()
	h := c.active
	c.active = nil
	c.mu.Unlock()
	if h != nil {
		h.Abort()
	}
}

// Done releases h if it is still the outstanding handle.
func (c *Controller) Done(h *Handle) {
	c.mu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.mu.Unlock()
	h.Release()
}
