// internal/player/scheduler.go
package player

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled continuation that can be cancelled.
type Timer interface {
	// Stop prevents the continuation from running. It reports whether the
	// call stopped it, as time.Timer.Stop does.
	Stop() bool
}

// Scheduler runs continuations after a delay. The player routes every delayed
// or externally triggered transition through it.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemScheduler schedules on the runtime's timers.
type SystemScheduler struct{}

// AfterFunc runs fn on its own goroutine after d.
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// ManualScheduler is a virtual clock. Continuations only run inside Advance
// and Flush, on the caller's goroutine, in due-time order.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	s       *ManualScheduler
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	for i, cand := range t.s.tasks {
		if cand == t {
			t.s.tasks = append(t.s.tasks[:i], t.s.tasks[i+1:]...)
			break
		}
	}
	return true
}

// NewManualScheduler creates a virtual clock at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc queues fn to run once the clock passes now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTask{s: s, at: s.now + d, seq: s.seq, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every continuation that falls
// due, including ones scheduled by continuations run during the advance.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for s.runNext(target) {
	}
	s.mu.Lock()
	if s.now < target {
		s.now = target
	}
	s.mu.Unlock()
}

// Flush runs continuations until none remain, advancing the clock to each
// one's due time. It gives up after limit continuations and reports whether
// the queue drained.
func (s *ManualScheduler) Flush(limit int) bool {
	for i := 0; i < limit; i++ {
		if !s.runNext(-1) {
			return true
		}
	}
	return s.Pending() == 0
}

// Pending returns the number of queued continuations.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Now returns the virtual time elapsed since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// runNext runs the earliest task due at or before limit (any task when limit
// is negative) and reports whether one ran.
func (s *ManualScheduler) runNext(limit time.Duration) bool {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return false
	}
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].at != s.tasks[j].at {
			return s.tasks[i].at < s.tasks[j].at
		}
		return s.tasks[i].seq < s.tasks[j].seq
	})
	t := s.tasks[0]
	if limit >= 0 && t.at > limit {
		s.mu.Unlock()
		return false
	}
	s.tasks = s.tasks[1:]
	t.stopped = true
	if t.at > s.now {
		s.now = t.at
	}
	s.mu.Unlock()

	t.fn()
	return true
}
