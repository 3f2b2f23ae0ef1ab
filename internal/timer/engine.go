// Package timer implements the countdown state machine and the tick
// sequences that drive it.
package timer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/countdown/internal/clock"
	"github.com/tinytelemetry/countdown/internal/model"
)

// Engine owns the current timer state and at most one active tick sequence.
//
// All reads and writes of the state and the active sequence are serialized
// by mu. A tick from a sequence that is no longer active is discarded, so
// after Stop returns no tick from the cancelled run is ever observed.
type Engine struct {
	mu     sync.Mutex
	state  model.State
	clock  clock.Clock
	source *TickSource
	active *Sequence
	subs   []*subscription
	nextID uint64
	closed bool
}

var _ model.TimerAPI = (*Engine)(nil)

type subscription struct {
	id  uint64
	box *mailbox
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	clock    clock.Clock
	interval time.Duration
}

// WithClock sets the clock used for tick pacing and transition timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *engineOptions) { o.clock = c }
}

// WithInterval overrides the delay between ticks. Defaults to one second.
func WithInterval(d time.Duration) Option {
	return func(o *engineOptions) { o.interval = d }
}

// New creates an engine in Idle(0).
func New(opts ...Option) *Engine {
	o := engineOptions{clock: clock.Real(), interval: model.DefaultTickInterval}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		state:  model.Idle(0),
		clock:  o.clock,
		source: NewTickSource(o.clock, o.interval),
	}
}

// State returns the current state.
func (e *Engine) State() model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetDuration stages a duration. It is a no-op while a countdown is running.
// The value is not validated; callers reject negative input.
func (e *Engine) SetDuration(seconds int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.state.IsRunning() {
		return
	}
	e.transitionLocked(model.Idle(seconds), model.CauseSetDuration)
}

// Start begins a countdown of the staged duration. It is a no-op unless the
// engine is Idle with a positive staged duration.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.state.CanStart() {
		return
	}

	total := e.state.ConfiguredSeconds
	seq := e.source.Countdown(total)
	e.active = seq
	e.transitionLocked(model.Running(total, total), model.CauseStart)
	log.Printf("timer: run started (%ds)", total)

	go e.consume(seq, total)
}

// Stop cancels any active countdown and resets to Idle(0). The staged
// duration is always cleared.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		e.active.Cancel()
		e.active = nil
		log.Printf("timer: run stopped at %d/%ds", e.state.RemainingSeconds, e.state.TotalSeconds)
	}
	e.transitionLocked(model.Idle(0), model.CauseStop)
}

// Subscribe calls fn with every new state, in transition order, until the
// returned func is called.
func (e *Engine) Subscribe(fn func(model.State)) (unsubscribe func()) {
	return e.Watch(func(t model.Transition) { fn(t.To) })
}

// Watch calls fn with every transition, in order, until the returned func is
// called. fn runs on a goroutine owned by the subscription and may call back
// into the engine.
func (e *Engine) Watch(fn func(model.Transition)) (cancel func()) {
	_, cancel = e.WatchState(fn)
	return cancel
}

// WatchState registers fn like Watch and atomically returns the state fn's
// first transition will start from.
func (e *Engine) WatchState(fn func(model.Transition)) (model.State, func()) {
	box := newMailbox(fn)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		box.close()
		return e.state, func() {}
	}

	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, &subscription{id: id, box: box})

	var once sync.Once
	return e.state, func() {
		once.Do(func() { e.unsubscribe(id) })
	}
}

// Close cancels any active countdown and releases every subscription.
// Commands issued after Close are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	if e.active != nil {
		e.active.Cancel()
		e.active = nil
	}
	for _, s := range e.subs {
		s.box.close()
	}
	e.subs = nil
}

func (e *Engine) unsubscribe(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subs {
		if s.id == id {
			s.box.close()
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// consume pulls ticks from seq until it is exhausted or no longer active.
func (e *Engine) consume(seq *Sequence, total int) {
	for {
		v, ok := seq.Next(context.Background())
		if !ok {
			return
		}
		if !e.applyTick(seq, total, v) {
			return
		}
	}
}

func (e *Engine) applyTick(seq *Sequence, total, remaining int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != seq {
		return false
	}
	if remaining > 0 {
		e.transitionLocked(model.Running(total, remaining), model.CauseTick)
		return true
	}

	e.active = nil
	e.transitionLocked(model.Idle(0), model.CauseFinish)
	log.Printf("timer: run finished (%ds)", total)
	return false
}

// transitionLocked replaces the state and queues the transition for every
// subscriber. Replacing a state with an equal value is not a transition.
func (e *Engine) transitionLocked(to model.State, cause model.Cause) {
	if to == e.state {
		return
	}
	t := model.Transition{
		From:  e.state,
		To:    to,
		Cause: cause,
		At:    e.clock.Now(),
	}
	e.state = to
	for _, s := range e.subs {
		s.box.push(t)
	}
}
