package chatstream

import "context"

// Dispatch decodes ev and invokes the matching handler in h. It carries no
// session awareness; callers pass guarded handlers.
//
// Unknown types return ErrUnknownEventType and malformed data returns an
// error wrapping ErrMalformedEvent. In both cases no handler runs and the
// caller is expected to log and continue.
func Dispatch(ctx context.Context, ev StreamEvent, h Handlers) error {
	p, err := ev.Payload()
	if err != nil {
		return err
	}
	switch e := p.(type) {
	case EventStatus:
		call(ctx, h.OnStatus, e)
	case EventToken:
		call(ctx, h.OnToken, e.Text)
	case EventProgress:
		call(ctx, h.OnProgress, e)
	case EventComplete:
		call(ctx, h.OnComplete, e)
	case EventError:
		call(ctx, h.OnError, ServerError(e))
	case EventMetadata:
		call(ctx, h.OnMetadata, e.Data)
	case EventSources:
		call(ctx, h.OnSources, e)
	}
	return nil
}

func call[T any](ctx context.Context, fn func(context.Context, T), v T) {
	if fn != nil {
		fn(ctx, v)
	}
}
