package chatstream

import "encoding/json"

// Event is a sealed interface over the typed payloads of a StreamEvent.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventStatus reports a pipeline phase change.
type EventStatus struct {
	Status  StreamStatus `json:"status"`
	Message string       `json:"message"`
}

func (EventStatus) event() {}

// EventToken carries a raw text delta.
type EventToken struct {
	Text string
}

func (EventToken) event() {}

// EventProgress is a periodic heartbeat with generation counters.
type EventProgress struct {
	Tokens             int     `json:"tokens"`
	Time               float64 `json:"time"`
	EstimatedRemaining float64 `json:"estimated_remaining"`
}

func (EventProgress) event() {}

// EventComplete signals successful completion with summary metrics.
type EventComplete struct {
	TotalTime   float64 `json:"total_time"`
	TotalTokens int     `json:"total_tokens"`
	Provider    string  `json:"provider"`
	Status      string  `json:"status"`
}

func (EventComplete) event() {}

// EventError is an error reported by the server inside the stream.
type EventError struct {
	Message     string `json:"message"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
}

func (EventError) event() {}

// EventMetadata carries arbitrary server metadata.
type EventMetadata struct {
	Data json.RawMessage
}

func (EventMetadata) event() {}

// EventSources describes the documents retrieved for the answer.
type EventSources struct {
	Count         int             `json:"count"`
	Preview       json.RawMessage `json:"preview,omitempty"`
	RetrievalTime float64         `json:"retrieval_time"`
}

func (EventSources) event() {}

// Interface compliance checks.
var (
	_ Event = EventStatus{}
	_ Event = EventToken{}
	_ Event = EventProgress{}
	_ Event = EventComplete{}
	_ Event = EventError{}
	_ Event = EventMetadata{}
	_ Event = EventSources{}
)
