package subprocess

import (
	"context"
)

// Task is the pending exit code of a worker invocation.
type Task struct {
	done     chan struct{}
	exitCode int
	err      error
}

// Go runs fn on a new goroutine and returns a Task completed with its result.
func Go(fn func() (int, error)) *Task {
	t := &Task{done: make(chan struct{})}

	go func() {
		defer close(t.done)

		t.exitCode, t.err = fn()
	}()

	return t
}

// Done returns a channel that is closed when the task completes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes or ctx is done.
func (t *Task) Wait(ctx context.Context) (int, error) {
	select {
	case <-t.done:
		return t.exitCode, t.err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}
