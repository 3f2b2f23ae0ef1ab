package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/countdown/internal/clock"
	"github.com/tinytelemetry/countdown/internal/model"
	"github.com/tinytelemetry/countdown/internal/socketrpc"
	"github.com/tinytelemetry/countdown/internal/timer"
)

type stubHistory struct{}

func (stubHistory) RecentRuns(limit int) ([]model.RunRecord, error) {
	runs := []model.RunRecord{
		{ID: "b", StartedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), TotalSeconds: 90, RemainingSeconds: 30, Outcome: model.OutcomeStopped},
		{ID: "a", StartedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), TotalSeconds: 60, Outcome: model.OutcomeCompleted},
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (stubHistory) RunStats() (model.RunStats, error) {
	return model.RunStats{Completed: 1, Stopped: 1, SecondsCounted: 120}, nil
}

// syncBuffer lets the watch test read output while the command writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	socket string
	engine *timer.Engine
	clock  *clock.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	fc := clock.NewFake(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	engine := timer.New(timer.WithClock(fc))
	t.Cleanup(engine.Close)

	sock := filepath.Join(t.TempDir(), "ctl.sock")
	srv := socketrpc.NewServer(sock, engine, stubHistory{})
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return &testEnv{socket: sock, engine: engine, clock: fc}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--socket", e.socket}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandsDriveTheEngine(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	require.Equal(t, "idle 0s\n", out)

	out, err = env.run(t, "set", "90")
	require.NoError(t, err)
	require.Equal(t, "idle 1m30s\n", out)
	require.Equal(t, model.Idle(90), env.engine.State())

	out, err = env.run(t, "start")
	require.NoError(t, err)
	require.Equal(t, "running 1m30s of 1m30s\n", out)

	// Set is ignored while running and reports the unchanged state.
	out, err = env.run(t, "set", "5")
	require.NoError(t, err)
	require.Equal(t, "running 1m30s of 1m30s\n", out)

	out, err = env.run(t, "stop")
	require.NoError(t, err)
	require.Equal(t, "idle 0s\n", out)
	require.Equal(t, model.Idle(0), env.engine.State())
}

func TestStartWithoutDurationIsIgnored(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "start")
	require.NoError(t, err)
	require.Equal(t, "idle 0s\n", out)
	require.Equal(t, model.Idle(0), env.engine.State())
}

func TestJSONOutput(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetDuration(12)

	out, err := env.run(t, "--json", "status")
	require.NoError(t, err)

	var st model.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Equal(t, model.Idle(12), st)
}

func TestSetRejectsBadSeconds(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetDuration(7)

	for _, arg := range []string{"-3", "abc", "1.5"} {
		_, err := env.run(t, "set", "--", arg)
		require.Error(t, err, arg)
	}
	_, err := env.run(t, "set")
	require.Error(t, err)
	require.Equal(t, model.Idle(7), env.engine.State())
}

func TestRunsAndStats(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "runs")
	require.NoError(t, err)
	require.Contains(t, out, "STARTED")
	require.Contains(t, out, "stopped")
	require.Contains(t, out, "completed")
	require.Contains(t, out, "1m0s")

	out, err = env.run(t, "runs", "-n", "1")
	require.NoError(t, err)
	require.NotContains(t, out, "completed")

	_, err = env.run(t, "runs", "-n", "0")
	require.Error(t, err)

	out, err = env.run(t, "stats")
	require.NoError(t, err)
	require.Equal(t, "2 runs, 1 completed, 1 stopped, 2m0s counted\n", out)
}

func TestWatchPrintsTransitions(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetDuration(1)

	out := &syncBuffer{}
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--socket", env.socket, "watch"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watching idle 1s")
	}, 2*time.Second, 10*time.Millisecond)

	env.engine.Start()
	env.clock.BlockUntil(1)
	env.clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "start") && strings.Contains(s, "finish")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not exit after cancel")
	}
}

func TestDialFailure(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--socket", filepath.Join(t.TempDir(), "missing.sock"), "status"})
	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot connect")
}

func TestSocketFromEnv(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("COUNTDOWN_SOCKET_PATH", env.socket)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"status"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, "idle 0s\n", out.String())
}
