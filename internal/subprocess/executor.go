package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/wagiedev/forkchannel-go/internal/cli"
	"github.com/wagiedev/forkchannel-go/internal/errors"
	"github.com/wagiedev/forkchannel-go/internal/linereader"
	"github.com/wagiedev/forkchannel-go/internal/shutdown"
)

// Streams are the controller's ends of the worker's standard streams.
type Streams struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader
}

// Executor spawns one worker process and waits for it.
type Executor struct {
	log        *slog.Logger
	cmdline    *cli.Commandline
	closeAfter io.Closer
	hooks      shutdown.Registerer

	mu         sync.Mutex // Protects cmd, hook, unregister and readEnds
	cmd        *exec.Cmd
	hook       *processHook
	unregister func()
	readEnds   []io.Closer

	// endOfStreams counts tracked consumers that have not finished yet.
	endOfStreams sync.WaitGroup

	waitOnce sync.Once
	exitCode int
	exitErr  error
}

// NewExecutor creates an executor for cmdline.
//
// closeAfterTermination, if not nil, is closed once the worker has exited and
// before tracked consumers are awaited. hooks, if not nil, receives the
// termination hook of the spawned worker.
func NewExecutor(
	log *slog.Logger,
	cmdline *cli.Commandline,
	closeAfterTermination io.Closer,
	hooks shutdown.Registerer,
) *Executor {
	return &Executor{
		log:        log.With("component", "executor"),
		cmdline:    cmdline,
		closeAfter: closeAfterTermination,
		hooks:      hooks,
		exitCode:   -1,
	}
}

// Execute spawns the worker.
//
// Stdout and stderr travel through pipes owned by the executor rather than
// exec's own pipes, so waiting for the process never closes a stream that a
// consumer is still reading. Returns SpawnError if the process fails to start.
func (e *Executor) Execute(ctx context.Context) (*Streams, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return nil, errors.ErrAlreadyStarted
	}

	e.log.Info("Starting worker process", "commandline", e.cmdline.String())

	cmd := e.cmdline.Cmd(ctx)

	// Set up stdin pipe for commands
	stdin, err := cmd.StdinPipe()
	if err != nil {
		e.log.Error("Failed to create stdin pipe", "error", err)

		return nil, &errors.SpawnError{Path: e.cmdline.Path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		e.log.Error("Failed to create stdout pipe", "error", err)

		return nil, &errors.SpawnError{Path: e.cmdline.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdin, stdoutR, stdoutW)
		e.log.Error("Failed to create stderr pipe", "error", err)

		return nil, &errors.SpawnError{Path: e.cmdline.Path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		e.log.Error("Failed to start worker process", "error", err)

		return nil, &errors.SpawnError{Path: e.cmdline.Path, Err: err}
	}

	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)

	e.cmd = cmd
	e.readEnds = []io.Closer{stdoutR, stderrR}
	e.hook = &processHook{log: e.log, process: cmd.Process}

	if e.hooks != nil {
		e.unregister = e.hooks.Register(e.hook.run)
	}

	e.log.Info("Worker process started", "pid", cmd.Process.Pid)

	return &Streams{Stdin: stdin, Stdout: stdoutR, Stderr: stderrR}, nil
}

// Track runs fn on its own goroutine and makes AwaitExit wait for it.
func (e *Executor) Track(name string, fn func()) {
	e.endOfStreams.Add(1)

	go func() {
		defer e.endOfStreams.Done()
		defer e.log.Debug("Tracked stream finished", "stream", name)

		fn()
	}()
}

// TrackConsumer starts c and makes AwaitExit wait until it is done.
func (e *Executor) TrackConsumer(c *linereader.Consumer) {
	e.endOfStreams.Add(1)
	c.Start(e.endOfStreams.Done)
}

// PID returns the worker process ID, or -1 if not started.
func (e *Executor) PID() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || e.cmd.Process == nil {
		return -1
	}

	return e.cmd.Process.Pid
}

// AwaitExit blocks until the worker terminates, closes the release callback,
// waits for every tracked consumer and returns the exit code.
//
// A non-zero exit is reported through the code, not as an error. The code is
// -1 if the worker was killed by a signal. Subsequent calls return the same
// result.
func (e *Executor) AwaitExit() (int, error) {
	e.mu.Lock()
	cmd := e.cmd
	e.mu.Unlock()

	if cmd == nil {
		return -1, errors.ErrNotStarted
	}

	e.waitOnce.Do(func() {
		e.exitCode, e.exitErr = e.await(cmd)
	})

	return e.exitCode, e.exitErr
}

func (e *Executor) await(cmd *exec.Cmd) (int, error) {
	e.log.Debug("Waiting for worker process to exit")

	var err error

	exitCode := -1

	waitErr := cmd.Wait()
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if waitErr != nil {
		if _, ok := stderrors.AsType[*exec.ExitError](waitErr); !ok {
			e.log.Error("Waiting for worker process failed", "error", waitErr)

			err = fmt.Errorf("wait for worker: %w", waitErr)
		}
	}

	e.log.Debug("Worker process exited", "exit_code", exitCode)

	if e.closeAfter != nil {
		if closeErr := e.closeAfter.Close(); closeErr != nil {
			e.log.Warn("Release after termination failed", "error", closeErr)

			err = stderrors.Join(err, fmt.Errorf("close after termination: %w", closeErr))
		}
	}

	e.endOfStreams.Wait()

	e.mu.Lock()
	closeAll(e.readEnds...)
	e.readEnds = nil
	e.mu.Unlock()

	e.log.Info("Worker process finished", "exit_code", exitCode)

	return exitCode, err
}

// Close runs the termination hook if it has not run yet and unregisters it.
//
// It's safe to call Close multiple times, before Execute, or concurrently
// with AwaitExit. Callers must still call AwaitExit to reap the process.
func (e *Executor) Close() error {
	e.mu.Lock()
	hook, unregister := e.hook, e.unregister
	e.hook, e.unregister = nil, nil
	e.mu.Unlock()

	if hook != nil {
		hook.run()
	}

	if unregister != nil {
		unregister()
	}

	return nil
}

// processHook kills the worker at most once.
type processHook struct {
	log     *slog.Logger
	process *os.Process
	once    sync.Once
}

func (h *processHook) run() {
	h.once.Do(func() {
		err := h.process.Kill()

		switch {
		case err == nil:
			h.log.Debug("Killed worker process", "pid", h.process.Pid)
		case stderrors.Is(err, os.ErrProcessDone):
		default:
			h.log.Warn("Failed to kill worker process", "pid", h.process.Pid, "error", err)
		}
	})
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
