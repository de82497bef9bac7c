// Package bubbletea provides a Bubble Tea chat view over a
// chatstream.Streamer.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/chatstream"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// StreamEventMsg delivers a stream event to the model. Session is the
// session of the handler that produced it.
type StreamEventMsg struct {
	Session chatstream.Session
	Event   chatstream.Event
}

// StreamErrorMsg delivers an OnError payload to the model.
type StreamErrorMsg struct {
	Session chatstream.Session
	Err     *chatstream.StreamError
}

// StreamDoneMsg signals that StreamMessage returned.
type StreamDoneMsg struct {
	Err error
}

// HistoryMsg carries the result of a history fetch. Initial marks the
// fetch issued at startup; later fetches follow a completed stream and
// carry its Session.
type HistoryMsg struct {
	Session chatstream.Session
	Initial bool
	Entries []chatstream.HistoryEntry
	Err     error
}

// runMsg tags a message with the submission that produced it.
type runMsg struct {
	run int
	msg tea.Msg
}

type clearBannerMsg struct {
	seq int
}
