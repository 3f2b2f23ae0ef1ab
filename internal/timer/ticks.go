package timer

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/tinytelemetry/countdown/internal/clock"
	"github.com/tinytelemetry/countdown/internal/model"
)

// TickSource produces countdown sequences paced by a clock.
type TickSource struct {
	clock    clock.Clock
	interval time.Duration
}

// NewTickSource returns a TickSource emitting one value per interval.
// A nil clock means the real clock; a non-positive interval means one second.
func NewTickSource(c clock.Clock, interval time.Duration) *TickSource {
	if c == nil {
		c = clock.Real()
	}
	if interval <= 0 {
		interval = model.DefaultTickInterval
	}
	return &TickSource{clock: c, interval: interval}
}

// Countdown returns a fresh sequence n-1, n-2, ..., 0 on the real clock,
// one value per second.
func Countdown(n int) *Sequence {
	return NewTickSource(nil, 0).Countdown(n)
}

// Countdown returns a fresh sequence n-1, n-2, ..., 0. The first value is due
// one interval after the call, each later value one interval after the
// previous due time. n <= 0 yields an empty sequence.
func (ts *TickSource) Countdown(n int) *Sequence {
	next := n - 1
	if n <= 0 {
		next = -1
	}
	return &Sequence{
		clock:    ts.clock,
		interval: ts.interval,
		total:    n,
		start:    ts.clock.Now(),
		next:     next,
		done:     make(chan struct{}),
	}
}

// Sequence is a lazy, finite, cancellable countdown. Values are produced only
// when pulled with Next; no timer is held between pulls.
type Sequence struct {
	clock    clock.Clock
	interval time.Duration
	total    int
	start    time.Time

	mu   sync.Mutex
	next int // next value to emit, -1 once exhausted

	done       chan struct{}
	cancelOnce sync.Once
}

// Next waits until the next value is due and returns it. It returns false
// once the sequence has emitted 0, has been cancelled, or ctx ends; an ended
// ctx cancels the sequence.
func (s *Sequence) Next(ctx context.Context) (int, bool) {
	s.mu.Lock()
	if s.next < 0 || s.cancelled() {
		s.mu.Unlock()
		return 0, false
	}
	due := s.start.Add(time.Duration(s.total-s.next) * s.interval)
	s.mu.Unlock()

	t := s.clock.NewTimer(due.Sub(s.clock.Now()))
	defer t.Stop()

	select {
	case <-t.C():
	case <-s.done:
		return 0, false
	case <-ctx.Done():
		s.Cancel()
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled() || s.next < 0 {
		return 0, false
	}
	v := s.next
	s.next--
	return v, true
}

// All exposes the sequence as an iterator. Breaking out of the loop cancels
// the sequence.
func (s *Sequence) All(ctx context.Context) iter.Seq[int] {
	return func(yield func(int) bool) {
		for {
			v, ok := s.Next(ctx)
			if !ok {
				return
			}
			if !yield(v) {
				s.Cancel()
				return
			}
		}
	}
}

// Cancel stops the sequence. A pending Next returns false and no further
// values are produced. Safe to call more than once.
func (s *Sequence) Cancel() {
	s.cancelOnce.Do(func() { close(s.done) })
}

// Done is closed when the sequence is cancelled.
func (s *Sequence) Done() <-chan struct{} { return s.done }

// Len returns the total number of values the sequence was created with.
func (s *Sequence) Len() int {
	if s.total < 0 {
		return 0
	}
	return s.total
}

func (s *Sequence) cancelled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
