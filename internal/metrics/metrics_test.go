package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/countdown/internal/clock"
	"github.com/tinytelemetry/countdown/internal/model"
	"github.com/tinytelemetry/countdown/internal/timer"
)

func tr(from, to model.State, cause model.Cause) model.Transition {
	return model.Transition{From: from, To: to, Cause: cause, At: time.Now()}
}

func TestObserve(t *testing.T) {
	t.Parallel()
	m := MustNewMetrics(prometheus.NewRegistry())

	m.Observe(tr(model.Idle(0), model.Idle(3), model.CauseSetDuration))
	m.Observe(tr(model.Idle(3), model.Running(3, 3), model.CauseStart))
	require.Equal(t, 1.0, testutil.ToFloat64(m.running))
	require.Equal(t, 3.0, testutil.ToFloat64(m.remaining))

	m.Observe(tr(model.Running(3, 3), model.Running(3, 2), model.CauseTick))
	m.Observe(tr(model.Running(3, 2), model.Running(3, 1), model.CauseTick))
	require.Equal(t, 1.0, testutil.ToFloat64(m.remaining))

	m.Observe(tr(model.Running(3, 1), model.Idle(0), model.CauseFinish))

	require.Equal(t, 1.0, testutil.ToFloat64(m.runsStarted))
	require.Equal(t, 3.0, testutil.ToFloat64(m.ticks))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runsEnded.WithLabelValues("completed")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.runsEnded.WithLabelValues("stopped")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.running))
	require.Equal(t, 0.0, testutil.ToFloat64(m.remaining))
}

func TestObserve_StopOnlyCountsRunningStops(t *testing.T) {
	t.Parallel()
	m := MustNewMetrics(prometheus.NewRegistry())

	m.Observe(tr(model.Idle(4), model.Idle(0), model.CauseStop))
	require.Equal(t, 0.0, testutil.ToFloat64(m.runsEnded.WithLabelValues("stopped")))

	m.Observe(tr(model.Idle(4), model.Running(4, 4), model.CauseStart))
	m.Observe(tr(model.Running(4, 4), model.Idle(0), model.CauseStop))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runsEnded.WithLabelValues("stopped")))
}

func TestMustNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	MustNewMetrics(reg)
	require.Panics(t, func() { MustNewMetrics(reg) })
}

func TestAttach(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Unix(0, 0))
	e := timer.New(timer.WithClock(fc))
	defer e.Close()

	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	m.Attach(e)
	defer m.Detach()

	e.SetDuration(2)
	e.Start()
	fc.BlockUntil(1)
	fc.Advance(time.Second)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ticks) == 1 && testutil.ToFloat64(m.remaining) == 1
	}, 2*time.Second, time.Millisecond)

	e.Stop()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.runsEnded.WithLabelValues("stopped")) == 1
	}, 2*time.Second, time.Millisecond)

	n, err := testutil.GatherAndCount(reg, "countdown_timer_runs_started_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
