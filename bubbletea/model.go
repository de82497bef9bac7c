package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/goldmark"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

const (
	defaultBannerTimeout = 5 * time.Second
	defaultHistoryLimit  = 50
	idleHint             = "Enter to send, Ctrl+C to quit"
	connectingText       = "Connecting..."
)

// Option configures a Model.
type Option func(*Model)

// WithHistory loads up to limit past exchanges from f at startup and again
// after every completed response.
func WithHistory(f chatstream.HistoryFetcher, limit int) Option {
	return func(m *Model) {
		m.history = f
		if limit > 0 {
			m.historyLimit = limit
		}
	}
}

// WithBannerTimeout sets how long an error banner stays visible.
func WithBannerTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.bannerTimeout = d
		}
	}
}

// WithDocumentIDs scopes every message to the given documents.
func WithDocumentIDs(ids ...string) Option {
	return func(m *Model) {
		m.documentIDs = ids
	}
}

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	spinner  spinner.Model
	streamer chatstream.Streamer
	renderer *goldmark.Renderer
	styles   Styles

	history       chatstream.HistoryFetcher
	historyLimit  int
	documentIDs   []string
	bannerTimeout time.Duration

	blocks []MessageBlock
	active *BotMessageBlock

	// run increments on every submit and abort; messages tagged with an
	// older run are dropped.
	run      int
	session  chatstream.Session
	started  bool
	status   chatstream.EventStatus
	progress *chatstream.EventProgress

	running bool
	cancel  context.CancelFunc
	done    <-chan struct{}
	eventCh chan tea.Msg

	err       error
	banner    string
	bannerSeq int
	ready     bool
}

// New creates a chat Model that sends messages through streamer.
func New(streamer chatstream.Streamer, theme chatstream.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = chatstream.MaxMessageLength

	styles := NewStyles(theme)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Status))

	m := Model{
		Input:         ti,
		spinner:       sp,
		streamer:      streamer,
		renderer:      goldmark.New(theme),
		styles:        styles,
		historyLimit:  defaultHistoryLimit,
		bannerTimeout: defaultBannerTimeout,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Running returns whether a response is streaming.
func (m Model) Running() bool { return m.running }

// Err returns the last error not already reported through the stream.
func (m Model) Err() error { return m.err }

// Banner returns the error banner text, or "" when none is shown.
func (m Model) Banner() string { return m.banner }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.history != nil {
		cmds = append(cmds, fetchHistory(m.history, m.historyLimit, chatstream.Session{}, true))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case runMsg:
		if msg.run != m.run || !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m, cmd = m.handleRun(msg.msg)
		if m.running {
			cmd = tea.Batch(cmd, listen(m.run, m.eventCh, m.done))
		}
		return m, cmd

	case HistoryMsg:
		return m.handleHistory(msg)

	case clearBannerMsg:
		if msg.seq == m.bannerSeq {
			m.banner = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := msg.Height - inputH - statusHeight - borderHeight

	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m = m.refresh()

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			return m.abort()
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if m.running {
			return m.abort()
		}
		return m, nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)
	}

	// When idle, pass keys to both input (for typing) and viewport (for
	// scrolling). Only non-character keys go to the viewport since 'j'/'k'
	// scroll it and are also text.
	if !m.running {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	req := chatstream.ChatRequest{Message: text, DocumentIDs: m.documentIDs}
	if err := req.Validate(); err != nil {
		return m.showBanner(err.Error())
	}

	m.Input.SetValue("")
	m.err = nil
	m.started = true

	m.blocks = append(m.blocks, NewUserMessageBlock(text, m.styles))
	m.active = NewBotMessageBlock(m.renderer, m.styles)
	m.blocks = append(m.blocks, m.active)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = ctx.Done()
	m.run++
	m.eventCh = make(chan tea.Msg, 256)
	m.session = chatstream.Session{}
	m.status = chatstream.EventStatus{}
	m.progress = nil
	m.running = true
	m.Input.Blur()
	m = m.refresh()

	return m, tea.Batch(
		startStream(ctx, m.streamer, text, m.documentIDs, m.eventCh),
		listen(m.run, m.eventCh, m.done),
		m.spinner.Tick,
	)
}

// abort stops the active stream. The streamer invalidates its session, so
// anything still in flight is dropped.
func (m Model) abort() (tea.Model, tea.Cmd) {
	m.streamer.Abort()
	m = m.endRun()
	if m.active != nil {
		m.active.Stop()
	}
	m = m.refresh()
	cmd := m.Input.Focus()
	return m, cmd
}

func (m Model) endRun() Model {
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = nil
	m.done = nil
	m.running = false
	m.eventCh = nil
	m.run++
	return m
}

func (m Model) handleRun(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StreamEventMsg:
		if !msg.Session.Active() {
			return m, nil
		}
		m.session = msg.Session
		var cmd tea.Cmd
		m, cmd = m.processEvent(msg.Session, msg.Event)
		m = m.refresh()
		return m, cmd

	case StreamErrorMsg:
		if !msg.Session.Active() {
			return m, nil
		}
		m.session = msg.Session
		if m.active != nil {
			m.active.Fail(msg.Err)
		}
		m = m.refresh()
		return m.showBanner(msg.Err.Error())

	case StreamDoneMsg:
		m = m.endRun()
		var cmd tea.Cmd
		var se *chatstream.StreamError
		if msg.Err != nil && !errors.Is(msg.Err, chatstream.ErrAborted) && !errors.As(msg.Err, &se) {
			m.err = msg.Err
			if m.active != nil {
				m.active.Fail(chatstream.ClassifyError(msg.Err))
			}
			m, cmd = m.showBanner(msg.Err.Error())
		}
		m = m.refresh()
		focus := m.Input.Focus()
		return m, tea.Batch(cmd, focus)
	}
	return m, nil
}

// processEvent applies a stream event to the active response.
func (m Model) processEvent(s chatstream.Session, evt chatstream.Event) (Model, tea.Cmd) {
	switch e := evt.(type) {
	case chatstream.EventStatus:
		m.status = e
	case chatstream.EventToken:
		if m.active != nil {
			m.active.Append(e.Text)
		}
	case chatstream.EventProgress:
		m.progress = &e
	case chatstream.EventSources:
		if m.active != nil {
			m.active.SetSources(e)
		}
	case chatstream.EventComplete:
		if m.active != nil {
			m.active.Complete(e)
		}
		if m.history != nil {
			return m, fetchHistory(m.history, m.historyLimit, s, false)
		}
	}
	return m, nil
}

func (m Model) handleHistory(msg HistoryMsg) (tea.Model, tea.Cmd) {
	if msg.Initial {
		if m.started {
			return m, nil
		}
	} else if !msg.Session.Active() || msg.Session != m.session {
		return m, nil
	}
	if msg.Err != nil {
		return m.showBanner(fmt.Sprintf("history: %v", msg.Err))
	}
	m.blocks = m.historyBlocks(msg.Entries)
	m.active = nil
	m = m.refresh()
	return m, nil
}

// historyBlocks renders entries, which arrive newest first, oldest first.
func (m Model) historyBlocks(entries []chatstream.HistoryEntry) []MessageBlock {
	blocks := make([]MessageBlock, 0, 2*len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		blocks = append(blocks, NewUserMessageBlock(e.UserMessage, m.styles))
		bot := NewBotMessageBlock(m.renderer, m.styles)
		bot.Append(e.BotResponse)
		bot.SetTimestamp(e.CreatedAt)
		blocks = append(blocks, bot)
	}
	return blocks
}

func (m Model) showBanner(text string) (Model, tea.Cmd) {
	m.banner = text
	m.bannerSeq++
	seq := m.bannerSeq
	return m, tea.Tick(m.bannerTimeout, func(time.Time) tea.Msg {
		return clearBannerMsg{seq: seq}
	})
}

func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	return m
}

func (m Model) renderContent() string {
	if len(m.blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

func (m Model) statusLine() string {
	width := m.Viewport.Width
	if m.banner != "" {
		return m.styles.Banner.Render(truncate("Error: "+m.banner, width))
	}
	if m.running {
		text := m.status.Message
		if text == "" && m.status.Status != "" {
			text = string(m.status.Status)
		}
		if text == "" {
			text = connectingText
		}
		if p := m.progress; p != nil {
			text += fmt.Sprintf(" · %d tokens", p.Tokens)
			if p.EstimatedRemaining > 0 {
				text += fmt.Sprintf(", ~%.0fs left", p.EstimatedRemaining)
			}
		}
		prefix := m.spinner.View() + " "
		return prefix + m.styles.Status.Render(truncate(text, width-lipgloss.Width(prefix)))
	}
	return m.styles.Muted.Render(truncate(idleHint, width))
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// startStream runs StreamMessage and reports its result on ch. Handlers
// relay events onto ch until ctx is cancelled.
func startStream(ctx context.Context, s chatstream.Streamer, text string, documentIDs []string, ch chan<- tea.Msg) tea.Cmd {
	return func() tea.Msg {
		h := chatstream.Handlers{
			OnStatus:   relay(ch, eventMsg[chatstream.EventStatus]),
			OnToken:    relay(ch, tokenMsg),
			OnProgress: relay(ch, eventMsg[chatstream.EventProgress]),
			OnComplete: relay(ch, eventMsg[chatstream.EventComplete]),
			OnSources:  relay(ch, eventMsg[chatstream.EventSources]),
			OnError:    relay(ch, errorMsg),
		}
		err := s.StreamMessage(ctx, text, h, documentIDs...)
		select {
		case ch <- StreamDoneMsg{Err: err}:
		case <-ctx.Done():
		}
		return nil
	}
}

func eventMsg[T chatstream.Event](s chatstream.Session, e T) tea.Msg {
	return StreamEventMsg{Session: s, Event: e}
}

func tokenMsg(s chatstream.Session, text string) tea.Msg {
	return StreamEventMsg{Session: s, Event: chatstream.EventToken{Text: text}}
}

func errorMsg(s chatstream.Session, err *chatstream.StreamError) tea.Msg {
	return StreamErrorMsg{Session: s, Err: err}
}

func relay[T any](ch chan<- tea.Msg, wrap func(chatstream.Session, T) tea.Msg) func(context.Context, T) {
	return func(ctx context.Context, v T) {
		s, _ := chatstream.SessionFromContext(ctx)
		select {
		case ch <- wrap(s, v):
		case <-ctx.Done():
		}
	}
}

// listen waits for the next message of run. It returns nil once the run
// is cancelled.
func listen(run int, ch <-chan tea.Msg, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-ch:
			return runMsg{run: run, msg: msg}
		case <-done:
			return nil
		}
	}
}

func fetchHistory(f chatstream.HistoryFetcher, limit int, s chatstream.Session, initial bool) tea.Cmd {
	return func() tea.Msg {
		entries, err := f.History(context.Background(), limit)
		return HistoryMsg{Session: s, Initial: initial, Entries: entries, Err: err}
	}
}
