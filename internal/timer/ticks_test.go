package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/countdown/internal/clock"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// pull drains seq on a goroutine and forwards each value.
func pull(seq *Sequence) <-chan int {
	out := make(chan int)
	go func() {
		defer close(out)
		for v := range seq.All(context.Background()) {
			out <- v
		}
	}()
	return out
}

func TestCountdown_EmitsDescendingToZero(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(epoch)
	seq := NewTickSource(fc, time.Second).Countdown(3)
	values := pull(seq)

	for _, want := range []int{2, 1, 0} {
		fc.BlockUntil(1)
		fc.Advance(time.Second)
		require.Equal(t, want, <-values)
	}

	_, open := <-values
	require.False(t, open, "sequence should end after emitting 0")
	require.Equal(t, 0, fc.Pending())
}

func TestCountdown_FirstValueAfterOneInterval(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(epoch)
	seq := NewTickSource(fc, time.Second).Countdown(2)
	values := pull(seq)

	fc.BlockUntil(1)
	fc.Advance(999 * time.Millisecond)
	select {
	case v := <-values:
		t.Fatalf("value %d emitted before one interval elapsed", v)
	case <-time.After(20 * time.Millisecond):
	}

	fc.Advance(time.Millisecond)
	require.Equal(t, 1, <-values)
	seq.Cancel()
}

func TestCountdown_ZeroLengthIsEmpty(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(epoch)

	for _, n := range []int{0, -3} {
		seq := NewTickSource(fc, time.Second).Countdown(n)
		_, ok := seq.Next(context.Background())
		require.False(t, ok, "Countdown(%d) produced a value", n)
		require.Equal(t, 0, seq.Len())
	}
	require.Equal(t, 0, fc.Pending(), "empty sequences must not arm timers")
}

func TestCountdown_CancelBetweenEmissions(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(epoch)
	seq := NewTickSource(fc, time.Second).Countdown(5)
	values := pull(seq)

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	require.Equal(t, 4, <-values)

	fc.BlockUntil(1)
	seq.Cancel()

	_, open := <-values
	require.False(t, open, "no values after Cancel")
	require.Eventually(t, func() bool { return fc.Pending() == 0 }, time.Second, time.Millisecond,
		"cancelled sequence still holds a timer")

	_, ok := seq.Next(context.Background())
	require.False(t, ok)
}

func TestCountdown_ContextCancelRetiresSequence(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(epoch)
	seq := NewTickSource(fc, time.Second).Countdown(3)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() {
		_, ok := seq.Next(ctx)
		result <- ok
	}()

	fc.BlockUntil(1)
	cancel()
	require.False(t, <-result)

	select {
	case <-seq.Done():
	default:
		t.Fatal("context cancellation did not cancel the sequence")
	}
}

func TestCountdown_FreshInstancePerCall(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(epoch)
	src := NewTickSource(fc, time.Second)

	first := src.Countdown(2)
	first.Cancel()

	second := src.Countdown(2)
	values := pull(second)
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	require.Equal(t, 1, <-values)
	second.Cancel()
}

func TestCountdown_BreakCancels(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(epoch)
	seq := NewTickSource(fc, time.Second).Countdown(4)

	go func() {
		fc.BlockUntil(1)
		fc.Advance(time.Second)
	}()

	var got []int
	for v := range seq.All(context.Background()) {
		got = append(got, v)
		break
	}
	require.Equal(t, []int{3}, got)

	select {
	case <-seq.Done():
	default:
		t.Fatal("breaking out of All did not cancel the sequence")
	}
}

func TestNewTickSource_Defaults(t *testing.T) {
	t.Parallel()
	src := NewTickSource(nil, 0)
	require.Equal(t, time.Second, src.interval)
	require.NotNil(t, src.clock)
}
