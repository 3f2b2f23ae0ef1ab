package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_TimerFiresOnAdvance(t *testing.T) {
	t.Parallel()
	f := NewFake(epoch)
	tm := f.NewTimer(time.Second)

	f.Advance(500 * time.Millisecond)
	select {
	case <-tm.C():
		t.Fatal("timer fired early")
	default:
	}

	f.Advance(500 * time.Millisecond)
	select {
	case at := <-tm.C():
		if !at.Equal(epoch.Add(time.Second)) {
			t.Errorf("fired at %v, want %v", at, epoch.Add(time.Second))
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
	if f.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", f.Pending())
	}
}

func TestFake_StopReleasesTimer(t *testing.T) {
	t.Parallel()
	f := NewFake(epoch)
	tm := f.NewTimer(time.Second)

	if !tm.Stop() {
		t.Fatal("Stop on armed timer returned false")
	}
	if tm.Stop() {
		t.Error("second Stop returned true")
	}
	if f.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", f.Pending())
	}

	f.Advance(2 * time.Second)
	select {
	case <-tm.C():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFake_NonPositiveDurationFiresImmediately(t *testing.T) {
	t.Parallel()
	f := NewFake(epoch)
	tm := f.NewTimer(0)

	select {
	case <-tm.C():
	default:
		t.Fatal("zero-duration timer did not fire")
	}
	if tm.Stop() {
		t.Error("Stop after fire returned true")
	}
}

func TestFake_BlockUntil(t *testing.T) {
	t.Parallel()
	f := NewFake(epoch)

	done := make(chan struct{})
	go func() {
		f.BlockUntil(2)
		close(done)
	}()

	f.NewTimer(time.Second)
	f.NewTimer(2 * time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BlockUntil did not return after two timers were armed")
	}
}

func TestReal_Timer(t *testing.T) {
	t.Parallel()
	tm := Real().NewTimer(time.Millisecond)
	select {
	case <-tm.C():
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
