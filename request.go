package chatstream

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits enforced by the chat backend.
const (
	MaxMessageLength = 10000
	MaxDocumentIDs   = 50
)

// ChatRequest is the body of a streaming chat request.
type ChatRequest struct {
	Message     string   `json:"message"`
	DocumentIDs []string `json:"document_ids"`
	ThreadID    string   `json:"thread_id,omitempty"`
}

// Validate checks the constraints the backend enforces so that obviously
// bad input is rejected before a connection is opened.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message must not be empty: %w", ErrValidation)
	}
	if n := utf8.RuneCountInString(r.Message); n > MaxMessageLength {
		return fmt.Errorf("message too long: %d characters (max %d): %w", n, MaxMessageLength, ErrValidation)
	}
	if len(r.DocumentIDs) > MaxDocumentIDs {
		return fmt.Errorf("too many document IDs: %d (max %d): %w", len(r.DocumentIDs), MaxDocumentIDs, ErrValidation)
	}
	seen := make(map[string]struct{}, len(r.DocumentIDs))
	for _, id := range r.DocumentIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("document ID must not be empty: %w", ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate document ID %q: %w", id, ErrValidation)
		}
		seen[id] = struct{}{}
	}
	return nil
}

type requestIDKey struct{}

// ContextWithRequestID returns a copy of ctx carrying a request ID for
// transports to forward and loggers to record.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID carried by ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
