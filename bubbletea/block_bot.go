package bubbletea

import (
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/goldmark"
)

var _ MessageBlock = (*BotMessageBlock)(nil)

type botState int

const (
	botStreaming botState = iota
	botComplete
	botStopped
	botFailed
)

// BotMessageBlock renders a bot response as markdown while it streams.
// Finalized paragraphs (separated by a blank line) are rendered once per
// width and cached; only the trailing paragraph is re-rendered per token.
type BotMessageBlock struct {
	content  strings.Builder
	renderer *goldmark.Renderer
	styles   Styles

	finalizedRaw     string
	finalizedByWidth map[int]string

	state   botState
	sources *chatstream.EventSources
	summary chatstream.EventComplete
	failure string
	stamp   time.Time
}

// NewBotMessageBlock creates an empty, streaming bot block.
func NewBotMessageBlock(renderer *goldmark.Renderer, styles Styles) *BotMessageBlock {
	return &BotMessageBlock{
		renderer:         renderer,
		styles:           styles,
		finalizedByWidth: make(map[int]string),
	}
}

// Append adds streamed text.
func (b *BotMessageBlock) Append(text string) {
	if text == "" {
		return
	}
	b.content.WriteString(text)
	b.promoteFinalized()
}

// Text returns the raw markdown received so far.
func (b *BotMessageBlock) Text() string { return b.content.String() }

// SetSources records the retrieval summary shown above the response.
func (b *BotMessageBlock) SetSources(e chatstream.EventSources) { b.sources = &e }

// SetTimestamp marks the block as a persisted exchange created at t.
func (b *BotMessageBlock) SetTimestamp(t time.Time) {
	b.stamp = t
	b.state = botComplete
}

// Complete marks the response finished.
func (b *BotMessageBlock) Complete(e chatstream.EventComplete) {
	b.summary = e
	b.state = botComplete
}

// Stop marks the response as cancelled by the user. A finished block is
// left alone.
func (b *BotMessageBlock) Stop() {
	if b.state == botStreaming {
		b.state = botStopped
	}
}

// Fail marks the response as ended by err.
func (b *BotMessageBlock) Fail(err *chatstream.StreamError) {
	b.failure = err.Message
	if b.failure == "" {
		b.failure = err.Error()
	}
	b.state = botFailed
}

// Streaming reports whether the block still accepts tokens.
func (b *BotMessageBlock) Streaming() bool { return b.state == botStreaming }

func (b *BotMessageBlock) View(width int) string {
	var parts []string
	if b.sources != nil {
		parts = append(parts, b.styles.Muted.Render(sourcesLine(*b.sources)))
	}
	if body := b.body(width); body != "" {
		parts = append(parts, body)
	}
	if footer := b.footer(); footer != "" {
		parts = append(parts, footer)
	}
	return strings.Join(parts, "\n")
}

func (b *BotMessageBlock) body(width int) string {
	finalized := b.renderFinalized(width)
	trailing := b.trailingRaw()
	if hasUnclosedFence(trailing) {
		// Close the fence for rendering only so partial code displays.
		trailing += "\n```"
	}
	if strings.TrimSpace(trailing) == "" {
		return finalized
	}
	rendered := b.renderer.Render(trailing, width)
	if strings.TrimSpace(rendered) == "" {
		return finalized
	}
	if finalized == "" {
		return rendered
	}
	return strings.TrimRight(finalized, "\n") + "\n\n" + strings.TrimLeft(rendered, "\n")
}

func (b *BotMessageBlock) footer() string {
	switch b.state {
	case botStopped:
		return b.styles.Muted.Render("[stopped]")
	case botFailed:
		return b.styles.Error.Render("✗ " + b.failure)
	case botComplete:
		if !b.stamp.IsZero() {
			return b.styles.Muted.Render(b.stamp.Local().Format("2006-01-02 15:04"))
		}
		if b.summary.TotalTokens > 0 {
			return b.styles.Success.Render(fmt.Sprintf("✓ %d tokens in %.1fs", b.summary.TotalTokens, b.summary.TotalTime))
		}
	}
	return ""
}

func sourcesLine(e chatstream.EventSources) string {
	noun := "sources"
	if e.Count == 1 {
		noun = "source"
	}
	return fmt.Sprintf("%d %s (%.2fs)", e.Count, noun, e.RetrievalTime)
}

// promoteFinalized moves the prefix ending at the last blank line outside
// an open code fence into the cached region.
func (b *BotMessageBlock) promoteFinalized() {
	raw := b.content.String()
	for end := len(raw); ; {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := raw[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.finalizedRaw {
				b.finalizedRaw = candidate
				clear(b.finalizedByWidth)
			}
			return
		}
		end = idx
	}
}

func (b *BotMessageBlock) renderFinalized(width int) string {
	if width <= 0 || b.finalizedRaw == "" {
		return ""
	}
	if cached, ok := b.finalizedByWidth[width]; ok {
		return cached
	}
	rendered := b.renderer.Render(b.finalizedRaw, width)
	b.finalizedByWidth[width] = rendered
	return rendered
}

func (b *BotMessageBlock) trailingRaw() string {
	raw := b.content.String()
	if b.finalizedRaw == "" {
		return raw
	}
	return strings.TrimPrefix(raw, b.finalizedRaw+"\n\n")
}

// hasUnclosedFence counts "```" occurrences. Triple backticks inside inline
// code spans are miscounted.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
