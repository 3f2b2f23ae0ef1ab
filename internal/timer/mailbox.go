package timer

import (
	"sync"

	"github.com/tinytelemetry/countdown/internal/model"
)

// mailbox is an unbounded, ordered queue drained by its own goroutine.
// push never blocks, so a slow subscriber cannot stall the engine.
type mailbox struct {
	fn func(model.Transition)

	mu    sync.Mutex
	queue []model.Transition

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newMailbox(fn func(model.Transition)) *mailbox {
	m := &mailbox{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) push(t model.Transition) {
	m.mu.Lock()
	m.queue = append(m.queue, t)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}

		for {
			m.mu.Lock()
			batch := m.queue
			m.queue = nil
			m.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, t := range batch {
				select {
				case <-m.done:
					return
				default:
				}
				m.fn(t)
			}
		}
	}
}

// close stops delivery. Transitions still queued are discarded.
func (m *mailbox) close() {
	m.closeOnce.Do(func() { close(m.done) })
}
