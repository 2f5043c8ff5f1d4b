package pipe

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/forkchannel-go/internal/command"
	"github.com/wagiedev/forkchannel-go/internal/config"
	"github.com/wagiedev/forkchannel-go/internal/metrics"
	"github.com/wagiedev/forkchannel-go/internal/subprocess"
)

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, line)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.lines...)
}

func newExecutor(t *testing.T, options *config.Options) config.ExecutableCommandline {
	t.Helper()

	ch := NewForkChannel(options)
	t.Cleanup(func() { _ = ch.Close() })

	exec, err := ch.CreateExecutableCommandline()
	require.NoError(t, err)

	return exec
}

func TestExecuteAsTask_RoundTrip(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	exec := newExecutor(t, &config.Options{Logger: nopLogger(), Metrics: m})

	q := command.NewQueue()
	require.NoError(t, q.Push(command.MustNew(command.KindRunClass, []byte("pkg.FirstTest"))))
	require.NoError(t, q.Push(command.MustNew(command.KindNoop, nil)))
	require.NoError(t, q.Push(command.MustNew(command.KindByeAck, nil)))
	q.Close()

	events := &recorder{}
	stderr := &recorder{}

	var terminated atomic.Bool

	cmdline := helperCommandline(t, "echo", "5").WithConnectionString("", ConnectionString)

	task, err := exec.ExecuteAsTask(
		context.Background(), cmdline, q,
		config.EventHandlerFunc(events.add), nil, stderr.add,
		func() { terminated.Store(true) },
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code, err := task.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, code)
	require.True(t, terminated.Load())

	require.Equal(t, []string{
		"ack:run-testclass:" + base64.StdEncoding.EncodeToString([]byte("pkg.FirstTest")),
		"ack:noop",
		"ack:bye-ack",
	}, events.snapshot())
	require.Equal(t, []string{"worker started"}, stderr.snapshot())

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP forkchannel_events_received_total Total number of event lines delivered to the event handler
# TYPE forkchannel_events_received_total counter
forkchannel_events_received_total{transport="pipe"} 3
`), "forkchannel_events_received_total"))
}

// TestExecuteAsTask_WorkerIgnoresCommands tests that a worker exiting without
// reading its commands does not block the task on a pending command source.
func TestExecuteAsTask_WorkerIgnoresCommands(t *testing.T) {
	exec := newExecutor(t, &config.Options{Logger: nopLogger()})

	// Left open: the pump blocks in Next until the worker exits.
	q := command.NewQueue()
	events := &recorder{}

	var released atomic.Bool

	cmdline := helperCommandline(t, "exit", "0")
	cmdline.Release = subprocess.ReleaseFunc(func() error {
		released.Store(true)

		return nil
	})

	task, err := exec.ExecuteAsTask(context.Background(), cmdline, q, config.EventHandlerFunc(events.add), nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code, err := task.Wait(ctx)
	require.NoError(t, err)
	require.Zero(t, code)
	require.True(t, released.Load())
	require.Equal(t, []string{"leaving"}, events.snapshot())
}

// TestExecuteAsTask_OversizedLine tests that an event line above the maximum
// size is skipped and the worker's stdout keeps draining.
func TestExecuteAsTask_OversizedLine(t *testing.T) {
	exec := newExecutor(t, &config.Options{Logger: nopLogger(), MaxLineSize: 1024})

	q := command.NewQueue()
	events := &recorder{}

	task, err := exec.ExecuteAsTask(context.Background(), helperCommandline(t, "oversized", "7"), q,
		config.EventHandlerFunc(events.add), nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code, err := task.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, code)
	require.Equal(t, []string{"after"}, events.snapshot())
}

func TestExecuteAsTask_SpawnFailure(t *testing.T) {
	exec := newExecutor(t, &config.Options{Logger: nopLogger()})

	cmdline := helperCommandline(t, "echo")
	cmdline.Path = "/nonexistent/forkchannel-worker"

	_, err := exec.ExecuteAsTask(context.Background(), cmdline, command.NewQueue(), config.EventHandlerFunc(func(string) {}), nil, nil, nil)
	require.Error(t, err)
}
