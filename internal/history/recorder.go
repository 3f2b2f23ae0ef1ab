// Package history turns engine transitions into persisted run records.
package history

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/tinytelemetry/countdown/internal/model"
)

// Recorder opens a run record on every start and writes it once the run
// finishes or is stopped.
type Recorder struct {
	writer model.RunWriter
	newID  func() string

	mu     sync.Mutex
	open   *model.RunRecord
	cancel func()
}

// NewRecorder returns a Recorder writing finished runs to w.
func NewRecorder(w model.RunWriter) *Recorder {
	return &Recorder{writer: w, newID: uuid.NewString}
}

// Attach starts recording transitions from src. Calling Attach again
// replaces the previous source.
func (r *Recorder) Attach(src model.TimerWatcher) {
	cancel := src.Watch(r.Handle)

	r.mu.Lock()
	prev := r.cancel
	r.cancel = cancel
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// Handle applies one transition.
func (r *Recorder) Handle(t model.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch t.Cause {
	case model.CauseStart:
		r.open = &model.RunRecord{
			ID:               r.newID(),
			StartedAt:        t.At,
			TotalSeconds:     t.To.TotalSeconds,
			RemainingSeconds: t.To.RemainingSeconds,
		}

	case model.CauseFinish:
		r.closeLocked(t, 0, model.OutcomeCompleted)

	case model.CauseStop:
		if t.From.IsRunning() {
			r.closeLocked(t, t.From.RemainingSeconds, model.OutcomeStopped)
		}
	}
}

func (r *Recorder) closeLocked(t model.Transition, remaining int, outcome model.Outcome) {
	if r.open == nil {
		return
	}
	rec := *r.open
	r.open = nil

	rec.EndedAt = t.At
	rec.RemainingSeconds = remaining
	rec.Outcome = outcome

	if err := r.writer.InsertRun(rec); err != nil {
		log.Printf("history: dropping run %s: %v", rec.ID, err)
	}
}

// Close detaches from the source. A run still in progress is not recorded.
func (r *Recorder) Close() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.open = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
