package subprocess

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/forkchannel-go/internal/cli"
	"github.com/wagiedev/forkchannel-go/internal/errors"
	"github.com/wagiedev/forkchannel-go/internal/linereader"
	"github.com/wagiedev/forkchannel-go/internal/shutdown"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	delay time.Duration
}

func (r *lineRecorder) add(line string) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, line)
}

func (r *lineRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.lines...)
}

// TestAwaitExit_EventsBeforeExitCode tests that the exit code is only reported
// after every line has been delivered, even when the sink is slower than the worker.
func TestAwaitExit_EventsBeforeExitCode(t *testing.T) {
	log := nopLogger()

	var releasedAfterExit atomic.Bool

	exec := NewExecutor(log, helperCommandline(t, "events", "3", "7"), ReleaseFunc(func() error {
		releasedAfterExit.Store(true)

		return nil
	}), nil)

	defer exec.Close()

	streams, err := exec.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, streams.Stdin.Close())

	stdout := &lineRecorder{delay: 50 * time.Millisecond}
	stderr := &lineRecorder{}

	exec.TrackConsumer(linereader.NewConsumer(log, "stdout", streams.Stdout, 0, 0, stdout.add))
	exec.TrackConsumer(linereader.NewConsumer(log, "stderr", streams.Stderr, 0, 0, stderr.add))

	code, err := exec.AwaitExit()
	require.NoError(t, err)
	require.Equal(t, 7, code)
	require.True(t, releasedAfterExit.Load())

	require.Equal(t, []string{"event-0", "event-1", "event-2"}, stdout.snapshot())
	require.Equal(t, []string{"diagnostic"}, stderr.snapshot())

	// Repeated waits return the same result.
	code, err = exec.AwaitExit()
	require.NoError(t, err)
	require.Equal(t, 7, code)
}

// TestAwaitExit_ReleaseErrorIsReported tests that a failing release callback surfaces.
func TestAwaitExit_ReleaseErrorIsReported(t *testing.T) {
	boom := stderrors.New("release failed")
	exec := NewExecutor(nopLogger(), helperCommandline(t, "events", "0", "0"), ReleaseFunc(func() error {
		return boom
	}), nil)

	defer exec.Close()

	streams, err := exec.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, streams.Stdin.Close())

	code, err := exec.AwaitExit()
	require.Equal(t, 0, code)
	require.ErrorIs(t, err, boom)
}

// TestExecute_SpawnFailure tests that a missing binary fails synchronously.
func TestExecute_SpawnFailure(t *testing.T) {
	exec := NewExecutor(nopLogger(), &cli.Commandline{Path: "/nonexistent/worker"}, nil, nil)

	_, err := exec.Execute(context.Background())

	spawnErr, ok := stderrors.AsType[*errors.SpawnError](err)
	require.True(t, ok)
	require.Equal(t, "/nonexistent/worker", spawnErr.Path)

	// Close is safe after a failed spawn and AwaitExit reports the missing process.
	require.NoError(t, exec.Close())

	_, err = exec.AwaitExit()
	require.ErrorIs(t, err, errors.ErrNotStarted)
	require.Equal(t, -1, exec.PID())
}

// TestExecute_Twice tests that an executor only spawns once.
func TestExecute_Twice(t *testing.T) {
	exec := NewExecutor(nopLogger(), helperCommandline(t, "events", "0", "0"), nil, nil)

	defer exec.Close()

	streams, err := exec.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, streams.Stdin.Close())

	_, err = exec.Execute(context.Background())
	require.ErrorIs(t, err, errors.ErrAlreadyStarted)

	_, err = exec.AwaitExit()
	require.NoError(t, err)
}

// TestClose_KillsRunningWorker tests that Close runs the termination hook.
func TestClose_KillsRunningWorker(t *testing.T) {
	hooks := shutdown.NewHooks(nopLogger())
	exec := NewExecutor(nopLogger(), helperCommandline(t, "sleep"), nil, hooks)

	_, err := exec.Execute(context.Background())
	require.NoError(t, err)
	require.Positive(t, exec.PID())
	require.Equal(t, 1, hooks.Len())

	require.NoError(t, exec.Close())
	require.NoError(t, exec.Close())
	require.Zero(t, hooks.Len(), "hook must be unregistered after close")

	done := make(chan int, 1)

	go func() {
		code, _ := exec.AwaitExit()
		done <- code
	}()

	select {
	case code := <-done:
		require.Equal(t, -1, code, "killed worker reports -1")
	case <-time.After(5 * time.Second):
		t.Fatal("worker was not killed")
	}
}

// TestShutdownHook_KillsWorker tests that the application's hooks stop the worker
// and that a later Close does not fail.
func TestShutdownHook_KillsWorker(t *testing.T) {
	hooks := shutdown.NewHooks(nopLogger())
	exec := NewExecutor(nopLogger(), helperCommandline(t, "sleep"), nil, hooks)

	_, err := exec.Execute(context.Background())
	require.NoError(t, err)

	hooks.RunAll()

	code, err := exec.AwaitExit()
	require.NoError(t, err)
	require.Equal(t, -1, code)

	// The hook already ran; close after normal exit must not fail.
	require.NoError(t, exec.Close())
}

// TestTrack_WaitsForGoroutine tests that AwaitExit joins tracked goroutines.
func TestTrack_WaitsForGoroutine(t *testing.T) {
	exec := NewExecutor(nopLogger(), helperCommandline(t, "events", "0", "0"), nil, nil)

	defer exec.Close()

	streams, err := exec.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, streams.Stdin.Close())

	var finished atomic.Bool

	exec.Track("slow", func() {
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	})

	_, err = exec.AwaitExit()
	require.NoError(t, err)
	require.True(t, finished.Load())
}

// TestExecute_StdinReachesWorker tests the stdin pipe.
func TestExecute_StdinReachesWorker(t *testing.T) {
	log := nopLogger()
	exec := NewExecutor(log, helperCommandline(t, "echo"), nil, nil)

	defer exec.Close()

	streams, err := exec.Execute(context.Background())
	require.NoError(t, err)

	stdout := &lineRecorder{}
	exec.TrackConsumer(linereader.NewConsumer(log, "stdout", streams.Stdout, 0, 0, stdout.add))

	_, err = io.WriteString(streams.Stdin, "ping\npong\n")
	require.NoError(t, err)
	require.NoError(t, streams.Stdin.Close())

	code, err := exec.AwaitExit()
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, []string{"ping", "pong"}, stdout.snapshot())
}
