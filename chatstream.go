// Package chatstream holds the domain types of a streaming chat client: the
// wire events of a server-sent token stream, the handlers that consume them,
// and the session guard that keeps superseded requests from touching state.
//
// Implementations live in subpackages: sse decodes frames, cancel composes
// abort and timeout, batch coalesces tokens, stream orchestrates a request,
// and api talks HTTP to the backend.
package chatstream

import "context"

// Streamer sends a message and streams the reply into handlers.
//
// StreamMessage supersedes any stream already active on the same Streamer.
// Abort is idempotent and IsStreaming reflects it immediately.
type Streamer interface {
	StreamMessage(ctx context.Context, message string, h Handlers, documentIDs ...string) error
	Abort()
	IsStreaming() bool
}
