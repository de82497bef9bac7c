package chatstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrAborted indicates the stream was cancelled by the user.
	ErrAborted = errors.New("stream aborted")

	// ErrTimeout indicates the stream exceeded its configured timeout.
	ErrTimeout = errors.New("stream timed out")

	// ErrUnknownEventType indicates an event type this client does not know.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrMalformedEvent indicates a data line that is not a valid event.
	ErrMalformedEvent = errors.New("malformed event")
)

// Error codes attached to client-side StreamErrors.
const (
	CodeTimeout     = "TIMEOUT"
	CodeClientError = "CLIENT_ERROR"
)

// ErrorKind classifies a StreamError.
type ErrorKind int

const (
	KindClient  ErrorKind = iota // Transport failure or non-2xx status.
	KindTimeout                  // Configured timeout elapsed.
	KindAborted                  // User cancelled; never surfaced to handlers.
	KindServer                   // Error event sent by the server.
)

func (k ErrorKind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindTimeout:
		return "timeout"
	case KindAborted:
		return "aborted"
	case KindServer:
		return "server"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// StreamError is the payload delivered to Handlers.OnError.
type StreamError struct {
	Kind        ErrorKind
	Message     string
	Code        string
	Recoverable bool
	Err         error // underlying cause, nil for server errors
}

func (e *StreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *StreamError) Unwrap() error { return e.Err }

// ClassifyError maps a transport error to a StreamError. Errors matching
// ErrTimeout are recoverable; ErrAborted maps to KindAborted; everything else
// is a non-recoverable client error.
func ClassifyError(err error) *StreamError {
	var se *StreamError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, ErrAborted):
		return &StreamError{Kind: KindAborted, Message: "request aborted", Err: err}
	case errors.Is(err, ErrTimeout):
		return &StreamError{
			Kind:        KindTimeout,
			Message:     "request timed out",
			Code:        CodeTimeout,
			Recoverable: true,
			Err:         err,
		}
	default:
		return &StreamError{
			Kind:    KindClient,
			Message: err.Error(),
			Code:    CodeClientError,
			Err:     err,
		}
	}
}

// ServerError converts an error event into a StreamError.
func ServerError(e EventError) *StreamError {
	return &StreamError{
		Kind:        KindServer,
		Message:     e.Message,
		Code:        e.Code,
		Recoverable: e.Recoverable,
	}
}
