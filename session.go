package chatstream

import (
	"context"
	"sync/atomic"
)

// SessionID identifies one StreamMessage call. IDs increase monotonically
// per Sessions counter; zero is never issued.
type SessionID uint64

// Sessions is the live counter a Session is compared against. It is owned by
// a single orchestrator; the zero value is ready to use.
type Sessions struct {
	n atomic.Uint64
}

// Begin mints a new current Session. Every Session minted earlier becomes
// stale immediately, whether or not its request has finished.
func (s *Sessions) Begin() Session {
	return Session{id: SessionID(s.n.Add(1)), live: s}
}

// Current returns the ID of the most recently minted Session.
func (s *Sessions) Current() SessionID {
	return SessionID(s.n.Load())
}

// Invalidate makes every minted Session stale without starting a new one.
func (s *Sessions) Invalidate() {
	s.n.Add(1)
}

// Session is a captured counter value. It is a small value type and safe to
// copy; the zero Session is never active.
type Session struct {
	id   SessionID
	live *Sessions
}

// ID returns the captured session ID.
func (s Session) ID() SessionID { return s.id }

// Active reports whether s is still the current session. Callers that block
// (await I/O, wait on a channel) must call Active again afterwards before
// touching shared state.
func (s Session) Active() bool {
	return s.live != nil && s.live.Current() == s.id
}

// Do runs fn only if s is active and reports whether it ran.
func (s Session) Do(fn func()) bool {
	if !s.Active() {
		return false
	}
	fn()
	return true
}

type sessionKey struct{}

// ContextWithSession returns a copy of ctx carrying s.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the Session carried by ctx, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
