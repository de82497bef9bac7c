package bubbletea_test

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/fwojciec/chatstream/mock"
	"github.com/stretchr/testify/require"
)

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, s chatstream.Streamer, opts ...bt.Option) bt.Model {
	t.Helper()
	return initModelWithSize(t, s, 80, 24, opts...)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, s chatstream.Streamer, width, height int, opts ...bt.Option) bt.Model {
	t.Helper()
	m := bt.New(s, chatstream.DefaultTheme(), opts...)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// submit types text and presses Enter.
func submit(t *testing.T, m bt.Model, text string) bt.Model {
	t.Helper()
	m.Input.SetValue(text)
	return updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// nopStreamer returns immediately without emitting events.
func nopStreamer() *mock.Streamer {
	return &mock.Streamer{
		StreamMessageFn: func(context.Context, string, chatstream.Handlers, ...string) error {
			return nil
		},
	}
}

// fakeStreamer runs fn with guarded handlers and a handler context that
// carries a fresh session, the way an orchestrator does. Abort invalidates
// the session.
func fakeStreamer(fn func(ctx context.Context, message string, h chatstream.Handlers) error) *mock.Streamer {
	sessions := &chatstream.Sessions{}
	return &mock.Streamer{
		StreamMessageFn: func(ctx context.Context, message string, h chatstream.Handlers, _ ...string) error {
			s := sessions.Begin()
			return fn(chatstream.ContextWithSession(ctx, s), message, h.Guarded(s))
		},
		AbortFn: sessions.Invalidate,
	}
}
