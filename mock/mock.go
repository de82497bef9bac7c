// Package mock provides test doubles for chatstream interfaces using
// function fields.
package mock

import (
	"context"
	"io"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/api"
	"github.com/fwojciec/chatstream/stream"
)

// Interface compliance checks.
var (
	_ stream.Transport          = (*Transport)(nil)
	_ chatstream.Streamer       = (*Streamer)(nil)
	_ chatstream.HistoryFetcher = (*HistoryFetcher)(nil)
	_ api.TokenSource           = (*TokenSource)(nil)
)

// Transport is a test double for stream.Transport.
// Set OpenFn before calling Open.
type Transport struct {
	OpenFn func(ctx context.Context, req chatstream.ChatRequest) (io.ReadCloser, error)
}

// Open delegates to OpenFn.
func (t *Transport) Open(ctx context.Context, req chatstream.ChatRequest) (io.ReadCloser, error) {
	return t.OpenFn(ctx, req)
}

// Streamer is a test double for chatstream.Streamer.
// StreamMessageFn panics when nil to catch missing setup. AbortFn and
// IsStreamingFn are nil-safe (no-op and false).
type Streamer struct {
	StreamMessageFn func(ctx context.Context, message string, h chatstream.Handlers, documentIDs ...string) error
	AbortFn         func()
	IsStreamingFn   func() bool
}

// StreamMessage delegates to StreamMessageFn.
func (s *Streamer) StreamMessage(ctx context.Context, message string, h chatstream.Handlers, documentIDs ...string) error {
	return s.StreamMessageFn(ctx, message, h, documentIDs...)
}

// Abort delegates to AbortFn. It is a no-op when AbortFn is nil.
func (s *Streamer) Abort() {
	if s.AbortFn != nil {
		s.AbortFn()
	}
}

// IsStreaming delegates to IsStreamingFn. Returns false when IsStreamingFn is nil.
func (s *Streamer) IsStreaming() bool {
	if s.IsStreamingFn == nil {
		return false
	}
	return s.IsStreamingFn()
}

// HistoryFetcher is a test double for chatstream.HistoryFetcher.
// Set HistoryFn before calling History.
type HistoryFetcher struct {
	HistoryFn func(ctx context.Context, limit int) ([]chatstream.HistoryEntry, error)
}

// History delegates to HistoryFn.
func (h *HistoryFetcher) History(ctx context.Context, limit int) ([]chatstream.HistoryEntry, error) {
	return h.HistoryFn(ctx, limit)
}

// TokenSource is a test double for api.TokenSource.
// Set TokenFn before calling Token.
type TokenSource struct {
	TokenFn func(ctx context.Context) (string, error)
}

// Token delegates to TokenFn.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	return t.TokenFn(ctx)
}
