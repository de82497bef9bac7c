package batch_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/chatstream/batch"
	"github.com/fwojciec/chatstream/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type sink struct {
	mu      sync.Mutex
	flushes []string
}

func (s *sink) flush(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes = append(s.flushes, text)
}

func (s *sink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.flushes...)
}

func TestBatcher(t *testing.T) {
	t.Parallel()

	t.Run("tokens within a tick are coalesced", func(t *testing.T) {
		t.Parallel()
		sched := &mock.Scheduler{}
		var out sink
		b := batch.New(sched, out.flush)

		b.Add("Hel")
		b.Add("lo")
		b.Add(" world")
		assert.Equal(t, 1, sched.Pending())
		assert.Empty(t, out.got())

		require.Equal(t, 1, sched.Tick())
		assert.Equal(t, []string{"Hello world"}, out.got())
		assert.Empty(t, b.Pending())
	})

	t.Run("each tick gets its own flush", func(t *testing.T) {
		t.Parallel()
		sched := &mock.Scheduler{}
		var out sink
		b := batch.New(sched, out.flush)

		b.Add("a")
		sched.Tick()
		b.Add("b")
		b.Add("c")
		sched.Tick()
		assert.Equal(t, []string{"a", "bc"}, out.got())
	})

	t.Run("empty text schedules nothing", func(t *testing.T) {
		t.Parallel()
		sched := &mock.Scheduler{}
		var out sink
		b := batch.New(sched, out.flush)

		b.Add("")
		assert.Zero(t, sched.Pending())
	})

	t.Run("flush applies pending text and cancels the tick", func(t *testing.T) {
		t.Parallel()
		sched := &mock.Scheduler{}
		var out sink
		b := batch.New(sched, out.flush)

		b.Add("done")
		b.Flush()
		assert.Equal(t, []string{"done"}, out.got())
		assert.Zero(t, sched.Pending())
		assert.Zero(t, sched.Tick())
		assert.Equal(t, []string{"done"}, out.got())
	})

	t.Run("flush with nothing pending is a no-op", func(t *testing.T) {
		t.Parallel()
		var out sink
		b := batch.New(&mock.Scheduler{}, out.flush)
		b.Flush()
		assert.Empty(t, out.got())
	})

	t.Run("reset discards pending text", func(t *testing.T) {
		t.Parallel()
		sched := &mock.Scheduler{}
		var out sink
		b := batch.New(sched, out.flush)

		b.Add("stale")
		b.Reset()
		assert.Empty(t, b.Pending())
		sched.Tick()
		assert.Empty(t, out.got())

		b.Add("fresh")
		sched.Tick()
		assert.Equal(t, []string{"fresh"}, out.got())
	})

	t.Run("immediate scheduler flushes every token", func(t *testing.T) {
		t.Parallel()
		var out sink
		b := batch.New(batch.Immediate, out.flush)
		b.Add("a")
		b.Add("b")
		assert.Equal(t, []string{"a", "b"}, out.got())
		assert.Empty(t, b.Pending())
	})

	t.Run("interval scheduler flushes after the delay", func(t *testing.T) {
		t.Parallel()
		var out sink
		b := batch.New(batch.Interval(5*time.Millisecond), out.flush)
		b.Add("x")
		b.Add("y")
		assert.Eventually(t, func() bool {
			return strings.Join(out.got(), "") == "xy"
		}, 2*time.Second, time.Millisecond)
	})
}

func TestBatcher_PreservesOrder(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		sched := &mock.Scheduler{}
		var out sink
		b := batch.New(sched, out.flush)

		tokens := rapid.SliceOf(rapid.String()).Draw(rt, "tokens")
		var want strings.Builder
		for i, tok := range tokens {
			b.Add(tok)
			want.WriteString(tok)
			if rapid.Bool().Draw(rt, "tick") {
				sched.Tick()
			}
			if i%7 == 6 {
				b.Flush()
			}
		}
		b.Flush()

		flushes := out.got()
		for _, f := range flushes {
			if f == "" {
				rt.Fatalf("empty flush")
			}
		}
		if got := strings.Join(flushes, ""); got != want.String() {
			rt.Fatalf("got %q, want %q", got, want.String())
		}
	})
}
