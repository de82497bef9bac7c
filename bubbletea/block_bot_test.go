package bubbletea_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/chatstream"
	bt "github.com/fwojciec/chatstream/bubbletea"
	"github.com/fwojciec/chatstream/goldmark"
	"github.com/stretchr/testify/assert"
)

func newBotBlock() *bt.BotMessageBlock {
	theme := chatstream.DefaultTheme()
	return bt.NewBotMessageBlock(goldmark.New(theme), bt.NewStyles(theme))
}

func TestBotMessageBlock_View(t *testing.T) {
	t.Parallel()

	t.Run("renders streamed text", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("Hello")
		b.Append(", world")
		assert.Contains(t, b.View(80), "Hello, world")
		assert.Equal(t, "Hello, world", b.Text())
		assert.True(t, b.Streaming())
	})

	t.Run("empty block renders nothing", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("")
		assert.Empty(t, b.View(80))
	})

	t.Run("incremental render matches full render", func(t *testing.T) {
		t.Parallel()
		source := "# Title\n\nFirst paragraph with **bold**.\n\n- one\n- two\n\nLast line"
		b := newBotBlock()
		for _, r := range source {
			b.Append(string(r))
		}
		want := goldmark.Render(source, 60, chatstream.DefaultTheme())
		assert.Equal(t, want, b.View(60))
	})

	t.Run("unclosed fence renders as code", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("Example:\n\n```go\nfmt.Println(1)")
		view := b.View(80)
		assert.Contains(t, view, "fmt.Println(1)")
		assert.NotContains(t, view, "```")
	})

	t.Run("blank line inside open fence stays in the code block", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("```\nfirst\n\nsecond")
		view := b.View(80)
		assert.NotContains(t, view, "```")
		for _, line := range strings.Split(view, "\n") {
			if strings.Contains(line, "first") || strings.Contains(line, "second") {
				assert.True(t, strings.HasPrefix(line, "│ "), "code line %q", line)
			}
		}
	})

	t.Run("re-renders at a new width", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("word1 word2 word3 word4 word5 word6 word7 word8\n\nnext")
		narrow := b.View(20)
		wide := b.View(120)
		assert.NotEqual(t, narrow, wide)
		assert.Contains(t, wide, "word1 word2 word3 word4 word5 word6 word7 word8")
	})
}

func TestBotMessageBlock_Markers(t *testing.T) {
	t.Parallel()

	t.Run("sources", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.SetSources(chatstream.EventSources{Count: 3, RetrievalTime: 0.42})
		b.Append("answer")
		view := b.View(80)
		assert.True(t, strings.HasPrefix(view, "3 sources (0.42s)"), view)

		one := newBotBlock()
		one.SetSources(chatstream.EventSources{Count: 1, RetrievalTime: 0.1})
		assert.Contains(t, one.View(80), "1 source (0.10s)")
	})

	t.Run("complete summary", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("done")
		b.Complete(chatstream.EventComplete{TotalTokens: 12, TotalTime: 1.54})
		assert.Contains(t, b.View(80), "✓ 12 tokens in 1.5s")
		assert.False(t, b.Streaming())
	})

	t.Run("stopped", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("partial")
		b.Stop()
		assert.Contains(t, b.View(80), "[stopped]")
		assert.False(t, b.Streaming())
	})

	t.Run("stop after complete is ignored", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Complete(chatstream.EventComplete{})
		b.Stop()
		assert.NotContains(t, b.View(80), "[stopped]")
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Append("partial")
		b.Fail(&chatstream.StreamError{Kind: chatstream.KindServer, Message: "model overloaded"})
		assert.Contains(t, b.View(80), "✗ model overloaded")
	})

	t.Run("failed without message uses the error text", func(t *testing.T) {
		t.Parallel()
		b := newBotBlock()
		b.Fail(chatstream.ClassifyError(errors.New("connection reset")))
		assert.Contains(t, b.View(80), "connection reset")
	})

	t.Run("history timestamp", func(t *testing.T) {
		t.Parallel()
		at := time.Date(2026, 10, 1, 12, 30, 0, 0, time.UTC)
		b := newBotBlock()
		b.Append("from history")
		b.SetTimestamp(at)
		assert.Contains(t, b.View(80), at.Local().Format("2006-01-02 15:04"))
		assert.False(t, b.Streaming())
	})
}
