package chatstream

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the payload carried by a StreamEvent.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeToken    EventType = "token"
	EventTypeProgress EventType = "progress"
	EventTypeComplete EventType = "complete"
	EventTypeError    EventType = "error"
	EventTypeMetadata EventType = "metadata"
	EventTypeSources  EventType = "sources"
)

// StreamEvent is the JSON envelope carried by each data line of the stream.
// Data is kept raw until Payload or Dispatch decodes it for its Type.
type StreamEvent struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// ParseEvent decodes a data-line payload into a StreamEvent.
func ParseEvent(payload []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("parse event: %w: %w", ErrMalformedEvent, err)
	}
	if ev.Type == "" {
		return StreamEvent{}, fmt.Errorf("parse event: missing type: %w", ErrMalformedEvent)
	}
	return ev, nil
}

// Payload decodes Data into the typed Event for ev.Type.
// Unknown types return ErrUnknownEventType.
func (ev StreamEvent) Payload() (Event, error) {
	switch ev.Type {
	case EventTypeStatus:
		return decodeAs[EventStatus](ev)
	case EventTypeToken:
		var text string
		if err := ev.decode(&text); err != nil {
			return nil, err
		}
		return EventToken{Text: text}, nil
	case EventTypeProgress:
		return decodeAs[EventProgress](ev)
	case EventTypeComplete:
		return decodeAs[EventComplete](ev)
	case EventTypeError:
		return decodeAs[EventError](ev)
	case EventTypeMetadata:
		return EventMetadata{Data: ev.Data}, nil
	case EventTypeSources:
		return decodeAs[EventSources](ev)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
}

func decodeAs[T Event](ev StreamEvent) (Event, error) {
	var p T
	if err := ev.decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

func (ev StreamEvent) decode(v any) error {
	if len(ev.Data) == 0 {
		return fmt.Errorf("%s event: missing data: %w", ev.Type, ErrMalformedEvent)
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("%s event: %w: %w", ev.Type, ErrMalformedEvent, err)
	}
	return nil
}
