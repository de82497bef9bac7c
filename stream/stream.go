// Package stream drives one streaming chat request at a time: it opens the
// transport, decodes frames, routes events to session-guarded handlers and
// batches tokens on the way.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/batch"
	"github.com/fwojciec/chatstream/cancel"
	"github.com/fwojciec/chatstream/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport opens the response body of a streaming chat request. The body
// is a server-sent event stream. Open must honour ctx cancellation.
type Transport interface {
	Open(ctx context.Context, req chatstream.ChatRequest) (io.ReadCloser, error)
}

// Interface compliance check.
var _ chatstream.Streamer = (*Orchestrator)(nil)

// Orchestrator implements [chatstream.Streamer]. At most one stream is
// active per Orchestrator; starting another supersedes it.
type Orchestrator struct {
	transport Transport
	logger    *zap.Logger
	sched     batch.Scheduler
	ctrl      cancel.Controller
	sessions  chatstream.Sessions

	mu      sync.Mutex
	handle  *cancel.Handle
	batcher *batch.Batcher
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTimeout bounds each stream. Zero uses [cancel.DefaultTimeout]; a
// negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.ctrl.Timeout = d }
}

// WithComposer sets how the abort trigger and the timeout are combined.
func WithComposer(c cancel.Composer) Option {
	return func(o *Orchestrator) { o.ctrl.Composer = c }
}

// WithScheduler sets the token batching scheduler. The default flushes once
// per [batch.FrameInterval].
func WithScheduler(s batch.Scheduler) Option {
	return func(o *Orchestrator) { o.sched = s }
}

// New creates an [Orchestrator] reading from t.
func New(t Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: t,
		logger:    zap.NewNop(),
		sched:     batch.Interval(batch.FrameInterval),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StreamMessage sends message with the given document IDs and streams the
// reply into h. See [Orchestrator.Stream].
func (o *Orchestrator) StreamMessage(ctx context.Context, message string, h chatstream.Handlers, documentIDs ...string) error {
	return o.Stream(ctx, chatstream.ChatRequest{Message: message, DocumentIDs: documentIDs}, h)
}

// Stream sends req and blocks until the response ends. It returns nil at end
// of stream, including after protocol error events. A transport failure is
// reported to h.OnError and returned, except for a user abort which returns
// [chatstream.ErrAborted] silently.
func (o *Orchestrator) Stream(ctx context.Context, req chatstream.ChatRequest, h chatstream.Handlers) error {
	sess, handle, b, hctx, guarded := o.begin(ctx, h)
	defer o.finish(handle)

	requestID := uuid.NewString()
	log := o.logger.With(
		zap.Uint64("session_id", uint64(sess.ID())),
		zap.String("request_id", requestID),
	)
	log.Debug("stream started", zap.Int("document_ids", len(req.DocumentIDs)))

	body, err := o.transport.Open(chatstream.ContextWithRequestID(handle.Context(), requestID), req)
	if err != nil {
		return o.fail(hctx, log, guarded, handle, b, err)
	}
	defer body.Close()
	// Unblock a pending Read once the stream is aborted or times out.
	stop := context.AfterFunc(handle.Context(), func() { body.Close() })
	defer stop()

	// Tokens go through the batcher; everything else is dispatched as is.
	routed := guarded
	routed.OnToken = func(_ context.Context, text string) { b.Add(text) }

	dec := sse.NewDecoder(body)
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			if errors.Is(handle.Err(), chatstream.ErrAborted) {
				return o.fail(hctx, log, guarded, handle, b, err)
			}
			b.Flush()
			log.Debug("stream ended")
			return nil
		}
		if err != nil {
			return o.fail(hctx, log, guarded, handle, b, err)
		}
		for _, data := range frame.Data {
			o.dispatch(hctx, log, data, routed, b)
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, log *zap.Logger, data string, h chatstream.Handlers, b *batch.Batcher) {
	ev, err := chatstream.ParseEvent([]byte(data))
	if err != nil {
		log.Warn("skipping malformed frame", zap.Error(err), zap.String("data", data))
		return
	}
	if ev.Type == chatstream.EventTypeComplete || ev.Type == chatstream.EventTypeError {
		b.Flush()
	}
	if err := chatstream.Dispatch(ctx, ev, h); err != nil {
		if errors.Is(err, chatstream.ErrUnknownEventType) {
			log.Warn("skipping unknown event", zap.String("type", string(ev.Type)))
			return
		}
		log.Warn("skipping malformed event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// fail classifies a transport failure. The handle's own cause takes
// precedence over err, which is usually just a closed body or a cancelled
// request by then.
func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, h chatstream.Handlers, handle *cancel.Handle, b *batch.Batcher, err error) error {
	if cause := handle.Err(); cause != nil {
		err = cause
	}
	se := chatstream.ClassifyError(err)
	if se.Kind == chatstream.KindAborted {
		b.Reset()
		log.Debug("stream aborted")
		return chatstream.ErrAborted
	}
	b.Flush()
	log.Error("stream failed", zap.Stringer("kind", se.Kind), zap.Error(err))
	if h.OnError != nil {
		h.OnError(ctx, se)
	}
	return se
}

// begin supersedes the active stream and installs a new one.
func (o *Orchestrator) begin(ctx context.Context, h chatstream.Handlers) (chatstream.Session, *cancel.Handle, *batch.Batcher, context.Context, chatstream.Handlers) {
	o.mu.Lock()
	prev := o.batcher
	sess := o.sessions.Begin()
	handle := o.ctrl.Start(ctx)
	guarded := h.Guarded(sess)
	hctx := chatstream.ContextWithSession(ctx, sess)
	b := batch.New(o.sched, func(text string) {
		if guarded.OnToken != nil {
			guarded.OnToken(hctx, text)
		}
	})
	o.handle = handle
	o.batcher = b
	o.mu.Unlock()

	if prev != nil {
		prev.Reset()
	}
	return sess, handle, b, hctx, guarded
}

func (o *Orchestrator) finish(handle *cancel.Handle) {
	o.mu.Lock()
	if o.handle == handle {
		o.handle = nil
		o.batcher = nil
	}
	o.mu.Unlock()
	o.ctrl.Done(handle)
}

// Abort cancels the active stream, if any. Pending tokens are discarded and
// no handler of the aborted stream runs afterwards.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	b := o.batcher
	active := o.handle != nil
	o.handle = nil
	o.batcher = nil
	if active {
		o.sessions.Invalidate()
	}
	o.mu.Unlock()

	o.ctrl.Abort()
	if b != nil {
		b.Reset()
	}
}

// IsStreaming reports whether a stream is active.
func (o *Orchestrator) IsStreaming() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handle != nil
}
