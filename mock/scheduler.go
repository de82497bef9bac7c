package mock

import (
	"sync"

	"github.com/fwojciec/chatstream/batch"
)

var _ batch.Scheduler = (*Scheduler)(nil)

// Scheduler is a manual batch.Scheduler. Scheduled callbacks run only when
// the test calls Tick.
type Scheduler struct {
	mu    sync.Mutex
	queue []*task
}

type task struct {
	fn      func()
	stopped bool
}

// Schedule queues fn until the next Tick.
func (s *Scheduler) Schedule(fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &task{fn: fn}
	s.queue = append(s.queue, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// Tick runs every callback queued before the call, in order, skipping
// stopped ones. It returns how many ran.
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()

	ran := 0
	for _, t := range queue {
		s.mu.Lock()
		skip := t.stopped
		t.stopped = true
		s.mu.Unlock()
		if skip {
			continue
		}
		t.fn()
		ran++
	}
	return ran
}

// Pending returns the number of queued callbacks that have not been stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.queue {
		if !t.stopped {
			n++
		}
	}
	return n
}
