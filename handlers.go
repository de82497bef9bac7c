package chatstream

import (
	"context"
	"encoding/json"
)

// Handlers receives typed stream events. Every field is optional; a nil
// handler is a no-op. The context passed to each handler carries the
// handler's Session (see SessionFromContext).
//
// OnToken receives text as it should be appended to the displayed response.
// When an orchestrator batches tokens, one call may merge several deltas.
type Handlers struct {
	OnStatus   func(ctx context.Context, e EventStatus)
	OnToken    func(ctx context.Context, text string)
	OnProgress func(ctx context.Context, e EventProgress)
	OnComplete func(ctx context.Context, e EventComplete)
	OnError    func(ctx context.Context, err *StreamError)
	OnMetadata func(ctx context.Context, data json.RawMessage)
	OnSources  func(ctx context.Context, e EventSources)
}

// Guarded returns a copy of h whose handlers do nothing once s is stale.
// The check runs on every call, not when Guarded is called.
func (h Handlers) Guarded(s Session) Handlers {
	return Handlers{
		OnStatus:   guard(s, h.OnStatus),
		OnToken:    guard(s, h.OnToken),
		OnProgress: guard(s, h.OnProgress),
		OnComplete: guard(s, h.OnComplete),
		OnError:    guard(s, h.OnError),
		OnMetadata: guard(s, h.OnMetadata),
		OnSources:  guard(s, h.OnSources),
	}
}

func guard[T any](s Session, fn func(context.Context, T)) func(context.Context, T) {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, v T) {
		if !s.Active() {
			return
		}
		fn(ctx, v)
	}
}
