package chatstream_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/chatstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	t.Run("envelope fields", func(t *testing.T) {
		t.Parallel()
		ev, err := chatstream.ParseEvent([]byte(`{"type":"token","data":"Hel","timestamp":"2024-01-01T00:00:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, chatstream.EventTypeToken, ev.Type)
		assert.JSONEq(t, `"Hel"`, string(ev.Data))
		assert.Equal(t, "2024-01-01T00:00:00Z", ev.Timestamp)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()
		_, err := chatstream.ParseEvent([]byte(`{"type":"token","data":`))
		assert.ErrorIs(t, err, chatstream.ErrMalformedEvent)
	})

	t.Run("missing type", func(t *testing.T) {
		t.Parallel()
		_, err := chatstream.ParseEvent([]byte(`{"data":"x"}`))
		assert.ErrorIs(t, err, chatstream.ErrMalformedEvent)
	})
}

func TestStreamEvent_Payload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
		want chatstream.Event
	}{
		{
			name: "status",
			json: `{"type":"status","data":{"status":"retrieving","message":"Searching documents..."}}`,
			want: chatstream.EventStatus{Status: chatstream.StatusRetrieving, Message: "Searching documents..."},
		},
		{
			name: "token",
			json: `{"type":"token","data":"lo, "}`,
			want: chatstream.EventToken{Text: "lo, "},
		},
		{
			name: "progress",
			json: `{"type":"progress","data":{"tokens":12,"time":2.5,"estimated_remaining":1.25}}`,
			want: chatstream.EventProgress{Tokens: 12, Time: 2.5, EstimatedRemaining: 1.25},
		},
		{
			name: "complete",
			json: `{"type":"complete","data":{"total_time":3.2,"total_tokens":5,"provider":"bedrock","status":"success"}}`,
			want: chatstream.EventComplete{TotalTime: 3.2, TotalTokens: 5, Provider: "bedrock", Status: "success"},
		},
		{
			name: "error",
			json: `{"type":"error","data":{"message":"boom","code":"STREAMING_ERROR","recoverable":false}}`,
			want: chatstream.EventError{Message: "boom", Code: "STREAMING_ERROR"},
		},
		{
			name: "metadata",
			json: `{"type":"metadata","data":{"thread_id":"t-1"}}`,
			want: chatstream.EventMetadata{Data: json.RawMessage(`{"thread_id":"t-1"}`)},
		},
		{
			name: "sources",
			json: `{"type":"sources","data":{"count":2,"retrieval_time":0.4}}`,
			want: chatstream.EventSources{Count: 2, RetrievalTime: 0.4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := chatstream.ParseEvent([]byte(tt.json))
			require.NoError(t, err)
			got, err := ev.Payload()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreamEvent_Payload_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		ev := chatstream.StreamEvent{Type: "citation", Data: json.RawMessage(`{}`)}
		_, err := ev.Payload()
		assert.ErrorIs(t, err, chatstream.ErrUnknownEventType)
	})

	t.Run("token with object data", func(t *testing.T) {
		t.Parallel()
		ev := chatstream.StreamEvent{Type: chatstream.EventTypeToken, Data: json.RawMessage(`{"text":"x"}`)}
		_, err := ev.Payload()
		assert.ErrorIs(t, err, chatstream.ErrMalformedEvent)
	})

	t.Run("status without data", func(t *testing.T) {
		t.Parallel()
		ev := chatstream.StreamEvent{Type: chatstream.EventTypeStatus}
		_, err := ev.Payload()
		assert.ErrorIs(t, err, chatstream.ErrMalformedEvent)
	})
}

func TestStreamStatus_Valid(t *testing.T) {
	t.Parallel()
	assert.True(t, chatstream.StatusStarting.Valid())
	assert.True(t, chatstream.StatusError.Valid())
	assert.False(t, chatstream.StreamStatus("thinking").Valid())
}
